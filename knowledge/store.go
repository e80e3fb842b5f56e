// Package knowledge persists the mapping from past prompts to the scripts
// generated for them. The whole mapping lives in one JSON object that is
// rewritten on every save.
package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// NoRelevantKnowledge is returned by Retrieve when no stored prompt matches.
const NoRelevantKnowledge = "No relevant knowledge found."

// ErrCorruptStore reports a store file that is not a JSON object of strings.
var ErrCorruptStore = errors.New("knowledge store is corrupt")

// Store is an insertion-ordered prompt -> script mapping bound to a file.
// It is not safe for concurrent use; one process owns a store file.
type Store struct {
	path    string
	keys    []string
	entries map[string]string
}

// New returns an empty store bound to path. Nothing is written until Save.
func New(path string) *Store {
	return &Store{path: path, entries: make(map[string]string)}
}

// Load reads the store at path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read knowledge store %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 || !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s: invalid JSON", ErrCorruptStore, path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: %s: top level is not an object", ErrCorruptStore, path)
	}
	var bad string
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			bad = key.String()
			return false
		}
		s.set(key.String(), value.String())
		return true
	})
	if bad != "" {
		return nil, fmt.Errorf("%w: %s: value for %q is not a string", ErrCorruptStore, path, bad)
	}
	return s, nil
}

// Path returns the file the store saves to.
func (s *Store) Path() string { return s.path }

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.keys) }

// Get returns the script stored for prompt.
func (s *Store) Get(prompt string) (string, bool) {
	v, ok := s.entries[prompt]
	return v, ok
}

// Keys returns the prompts in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Each calls fn for every entry in insertion order until fn returns false.
func (s *Store) Each(fn func(prompt, script string) bool) {
	for _, k := range s.keys {
		if !fn(k, s.entries[k]) {
			return
		}
	}
}

// Retrieve returns a "prompt: script" line for every stored prompt that
// contains query, newline-joined, or NoRelevantKnowledge.
func (s *Store) Retrieve(query string) string {
	var lines []string
	for _, k := range s.keys {
		if strings.Contains(k, query) {
			lines = append(lines, k+": "+s.entries[k])
		}
	}
	if len(lines) == 0 {
		return NoRelevantKnowledge
	}
	return strings.Join(lines, "\n")
}

// Set records script under prompt without saving.
func (s *Store) Set(prompt, script string) { s.set(prompt, script) }

// Upsert records script under prompt and rewrites the store file.
func (s *Store) Upsert(prompt, script string) error {
	s.set(prompt, script)
	return s.Save()
}

// Save atomically rewrites the bound file with the full mapping.
func (s *Store) Save() error {
	return s.SaveAs(s.path)
}

// SaveAs atomically writes the full mapping to path.
func (s *Store) SaveAs(path string) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save knowledge store %s: %w", path, err)
	}
	return nil
}

// MarshalJSON encodes the mapping as an indented object in insertion order.
func (s *Store) MarshalJSON() ([]byte, error) {
	if len(s.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range s.keys {
		key, err := encodeString(k)
		if err != nil {
			return nil, err
		}
		val, err := encodeString(s.entries[k])
		if err != nil {
			return nil, err
		}
		buf.WriteString("    ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(s.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

func (s *Store) set(k, v string) {
	if _, ok := s.entries[k]; !ok {
		s.keys = append(s.keys, k)
	}
	s.entries[k] = v
}

func encodeString(v string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
