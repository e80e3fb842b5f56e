package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"script_video_assistant/generator"
)

// PersistenceError reports a script artifact that could not be written.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist script %s: %v", e.Path, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }

// RenderError reports a failed hand-off to the renderer.
type RenderError struct {
	ScriptPath string
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.ScriptPath, e.Err)
}
func (e *RenderError) Unwrap() error { return e.Err }

var languageExt = map[string]string{
	"python":     "py",
	"py":         "py",
	"python3":    "py",
	"bash":       "sh",
	"sh":         "sh",
	"shell":      "sh",
	"zsh":        "sh",
	"go":         "go",
	"golang":     "go",
	"javascript": "js",
	"js":         "js",
	"typescript": "ts",
	"ts":         "ts",
	"ruby":       "rb",
	"powershell": "ps1",
}

// Handoff writes generated scripts to the scripts directory and hands them
// to the Renderer with the fixed presentation.
type Handoff struct {
	scriptsDir   string
	videosDir    string
	defaultExt   string
	videoExt     string
	presentation Presentation
	renderer     Renderer
	timeout      time.Duration
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewHandoff(cfg Config, renderer Renderer, logger *zap.Logger) (*Handoff, error) {
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ext := strings.TrimPrefix(cfg.Paths.ScriptExt, ".")
	if ext == "" {
		ext = "py"
	}
	videoExt := strings.TrimPrefix(cfg.Render.VideoExt, ".")
	if videoExt == "" {
		videoExt = "avi"
	}
	return &Handoff{
		scriptsDir:   cfg.Paths.ScriptsDir,
		videosDir:    cfg.Paths.VideosDir,
		defaultExt:   ext,
		videoExt:     videoExt,
		presentation: PresentationFromConfig(cfg.Render),
		renderer:     renderer,
		timeout:      cfg.RenderTimeout(),
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}, nil
}

// Persist writes the script to scripts/script_<unix>_<id>.<ext> and returns
// the path. Existing files are never overwritten.
func (h *Handoff) Persist(script generator.Script) (string, error) {
	if err := os.MkdirAll(h.scriptsDir, 0o755); err != nil {
		return "", &PersistenceError{Path: h.scriptsDir, Err: err}
	}
	ext := h.extFor(script.Language)

	var path string
	for try := 0; try < 3; try++ {
		path = filepath.Join(h.scriptsDir, fmt.Sprintf("script_%d_%s.%s", h.now().Unix(), h.newID(), ext))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", &PersistenceError{Path: path, Err: err}
		}
		if _, err := f.WriteString(script.Body); err != nil {
			f.Close()
			return "", &PersistenceError{Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &PersistenceError{Path: path, Err: err}
		}
		h.logger.Debug("script persisted", zap.String("path", path), zap.Int("bytes", len(script.Body)))
		return path, nil
	}
	return "", &PersistenceError{Path: path, Err: os.ErrExist}
}

// Render reads the script back and renders it to a video named after it.
func (h *Handoff) Render(ctx context.Context, scriptPath string) (string, error) {
	text, err := os.ReadFile(scriptPath)
	if err != nil {
		return "", &RenderError{ScriptPath: scriptPath, Err: err}
	}
	if err := os.MkdirAll(h.videosDir, 0o755); err != nil {
		return "", &RenderError{ScriptPath: scriptPath, Err: err}
	}
	videoPath := h.VideoPathFor(scriptPath)
	job := RenderJob{Text: string(text), OutputPath: videoPath, Presentation: h.presentation}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := h.renderer.Render(ctx, job); err != nil {
		return "", &RenderError{ScriptPath: scriptPath, Err: err}
	}
	h.logger.Debug("render finished", zap.String("video", videoPath), zap.Duration("took", time.Since(start)))
	return videoPath, nil
}

// VideoPathFor maps scripts/script_X.py to videos/script_X.<video ext>.
func (h *Handoff) VideoPathFor(scriptPath string) string {
	base := filepath.Base(scriptPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(h.videosDir, base+"."+h.videoExt)
}

func (h *Handoff) extFor(language string) string {
	if ext, ok := languageExt[strings.ToLower(language)]; ok {
		return ext
	}
	return h.defaultExt
}
