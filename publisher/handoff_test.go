package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"script_video_assistant/generator"
)

type recordingRenderer struct {
	jobs []RenderJob
	err  error
}

func (r *recordingRenderer) Render(_ context.Context, job RenderJob) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.Paths.ScriptsDir = filepath.Join(dir, "scripts")
	cfg.Paths.VideosDir = filepath.Join(dir, "videos")
	return cfg
}

func newTestHandoff(t *testing.T, r Renderer) *Handoff {
	t.Helper()
	h, err := NewHandoff(testConfig(t.TempDir()), r, nil)
	require.NoError(t, err)
	return h
}

func TestPersist_WritesArtifact(t *testing.T) {
	h := newTestHandoff(t, &recordingRenderer{})
	h.now = func() time.Time { return time.Unix(1718000000, 0) }
	h.newID = func() string { return "abcd1234" }

	path, err := h.Persist(generator.Script{Body: "print('hi')", Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.scriptsDir, "script_1718000000_abcd1234.py"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(data))
}

func TestPersist_ExtensionFromLanguage(t *testing.T) {
	h := newTestHandoff(t, &recordingRenderer{})
	tests := map[string]string{
		"":        ".py",
		"python":  ".py",
		"BASH":    ".sh",
		"go":      ".go",
		"js":      ".js",
		"cobol":   ".py",
		"python3": ".py",
	}
	for lang, want := range tests {
		path, err := h.Persist(generator.Script{Body: "x", Language: lang})
		require.NoError(t, err)
		assert.Equal(t, want, filepath.Ext(path), "language %q", lang)
	}
}

func TestPersist_SameSecondDoesNotCollide(t *testing.T) {
	h := newTestHandoff(t, &recordingRenderer{})
	h.now = func() time.Time { return time.Unix(42, 0) }

	first, err := h.Persist(generator.Script{Body: "one"})
	require.NoError(t, err)
	second, err := h.Persist(generator.Script{Body: "two"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestPersist_NeverOverwrites(t *testing.T) {
	h := newTestHandoff(t, &recordingRenderer{})
	h.now = func() time.Time { return time.Unix(42, 0) }
	h.newID = func() string { return "samesame" }

	_, err := h.Persist(generator.Script{Body: "one"})
	require.NoError(t, err)
	_, err = h.Persist(generator.Script{Body: "two"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, os.ErrExist)
}

func TestPersist_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg := testConfig(dir)
	cfg.Paths.ScriptsDir = filepath.Join(blocker, "scripts")
	h, err := NewHandoff(cfg, &recordingRenderer{}, nil)
	require.NoError(t, err)

	_, err = h.Persist(generator.Script{Body: "x"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
}

func TestRender_PassesTextAndPresentation(t *testing.T) {
	r := &recordingRenderer{}
	h := newTestHandoff(t, r)

	path, err := h.Persist(generator.Script{Body: "print('video')"})
	require.NoError(t, err)
	video, err := h.Render(context.Background(), path)
	require.NoError(t, err)

	base := strings.TrimSuffix(filepath.Base(path), ".py")
	assert.Equal(t, filepath.Join(h.videosDir, base+".avi"), video)
	require.Len(t, r.jobs, 1)
	job := r.jobs[0]
	assert.Equal(t, "print('video')", job.Text)
	assert.Equal(t, video, job.OutputPath)
	assert.Equal(t, Presentation{
		BackgroundImage: "image1.png",
		Font:            "typewriter.ttf",
		Width:           640,
		Height:          480,
		FPS:             25,
		CharsPerSecond:  10,
		Margins:         40,
		AudioPath:       "background1.mp3",
	}, job.Presentation)

	_, err = os.Stat(h.videosDir)
	assert.NoError(t, err)
}

func TestRender_DistinctScriptsGetDistinctVideos(t *testing.T) {
	r := &recordingRenderer{}
	h := newTestHandoff(t, r)
	h.now = func() time.Time { return time.Unix(7, 0) }

	var videos []string
	for _, body := range []string{"a", "b"} {
		path, err := h.Persist(generator.Script{Body: body})
		require.NoError(t, err)
		v, err := h.Render(context.Background(), path)
		require.NoError(t, err)
		videos = append(videos, v)
	}
	assert.NotEqual(t, videos[0], videos[1])
}

func TestRender_Errors(t *testing.T) {
	h := newTestHandoff(t, &recordingRenderer{err: errors.New("ffmpeg missing")})
	path, err := h.Persist(generator.Script{Body: "x"})
	require.NoError(t, err)

	_, err = h.Render(context.Background(), path)
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, err.Error(), "ffmpeg missing")

	_, err = h.Render(context.Background(), filepath.Join(h.scriptsDir, "nope.py"))
	require.ErrorAs(t, err, &re)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandRenderer_WritesJobToStdin(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "job.json")
	r, err := NewCommandRenderer([]string{"sh", "-c", `cat > "$1"`, "sh", out})
	require.NoError(t, err)

	job := RenderJob{
		Text:         "print(1)",
		OutputPath:   "videos/script_1.avi",
		Presentation: PresentationFromConfig(DefaultConfig().Render),
	}
	require.NoError(t, r.Render(context.Background(), job))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got RenderJob
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, job, got)
	assert.Contains(t, string(data), `"chars_per_second":10`)
}

func TestCommandRenderer_Failure(t *testing.T) {
	requireShell(t)
	r, err := NewCommandRenderer([]string{"sh", "-c", "echo 'font not found' >&2; exit 3"})
	require.NoError(t, err)

	err = r.Render(context.Background(), RenderJob{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "font not found")
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestCommandRenderer_Timeout(t *testing.T) {
	requireShell(t)
	r, err := NewCommandRenderer([]string{"sh", "-c", "exec sleep 5"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = r.Render(ctx, RenderJob{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewCommandRenderer_Empty(t *testing.T) {
	_, err := NewCommandRenderer(nil)
	require.Error(t, err)
	_, err = NewCommandRenderer([]string{""})
	require.Error(t, err)
}
