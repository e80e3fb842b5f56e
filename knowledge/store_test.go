package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(s *Store) map[string]string {
	out := make(map[string]string)
	s.Each(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, path, s.Path())
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json"},
		{"truncated", `{"a": "b"`},
		{"array", `["a", "b"]`},
		{"non-string value", `{"a": 1}`},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kb.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			require.ErrorIs(t, err, ErrCorruptStore)
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	s := New(path)
	s.Set("print hello", "print('hello')")
	s.Set("quotes \"and\" <tags>", "line1\nline2\té")
	s.Set("list files", "import os\nprint(os.listdir('.'))")
	require.NoError(t, s.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(snapshot(s), snapshot(loaded)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, s.Keys(), loaded.Keys())
}

func TestLoad_PreservesDocumentOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	doc := `{"zeta": "1", "alpha": "2", "mid": "3"}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, s.Keys())
}

func TestUpsert_LaterWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	s := New(path)
	require.NoError(t, s.Upsert("P", "S1"))
	require.NoError(t, s.Upsert("other", "O"))
	require.NoError(t, s.Upsert("P", "S2"))

	got, ok := s.Get("P")
	require.True(t, ok)
	assert.Equal(t, "S2", got)
	assert.Equal(t, []string{"P", "other"}, s.Keys())

	reloaded, err := Load(path)
	require.NoError(t, err)
	got, _ = reloaded.Get("P")
	assert.Equal(t, "S2", got)
}

func TestRetrieve(t *testing.T) {
	s := New("")
	s.Set("write a port scanner in python", "scan()")
	s.Set("port scanner with threads", "threads()")
	s.Set("hello world", "print('hi')")

	t.Run("substring of key matches", func(t *testing.T) {
		got := s.Retrieve("port scanner")
		assert.Equal(t, "write a port scanner in python: scan()\nport scanner with threads: threads()", got)
	})
	t.Run("every substring of a key includes it", func(t *testing.T) {
		key := "hello world"
		for i := 0; i < len(key); i++ {
			for j := i; j <= len(key); j++ {
				assert.Contains(t, s.Retrieve(key[i:j]), "hello world: print('hi')")
			}
		}
	})
	t.Run("key inside query does not match", func(t *testing.T) {
		assert.Equal(t, NoRelevantKnowledge, s.Retrieve("say hello world loudly"))
	})
	t.Run("match is case sensitive", func(t *testing.T) {
		assert.Equal(t, NoRelevantKnowledge, s.Retrieve("Hello"))
	})
	t.Run("empty store", func(t *testing.T) {
		assert.Equal(t, NoRelevantKnowledge, New("").Retrieve("anything"))
	})
}

func TestSave_EmptyStoreWritesEmptyObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kb.json")
	require.NoError(t, New(path).Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	s := New(path)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Upsert(k, k+k))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kb.json", entries[0].Name())
}

func TestSave_FailureKeepsPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	s := New(path)
	require.NoError(t, s.Upsert("a", "1"))

	// A directory at the target makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "keep"), nil, 0o644))
	require.Error(t, s.SaveAs(blocked))

	reloaded, err := Load(path)
	require.NoError(t, err)
	got, _ := reloaded.Get("a")
	assert.Equal(t, "1", got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
