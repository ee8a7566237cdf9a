package preferences

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FileStore persists preferences as a flat JSON object. The file is read once
// in OpenFile and rewritten on every Set.
type FileStore struct {
	mu     sync.RWMutex
	fs     afero.Fs
	path   string
	values map[string]string
}

// OpenFile loads path from fsys. A missing file yields an empty store; the
// file and its directory are created on the first Set.
func OpenFile(fsys afero.Fs, path string) (*FileStore, error) {
	s := &FileStore{fs: fsys, path: path, values: make(map[string]string)}

	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("decode preferences %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+1)
	maps.Copy(next, s.values)
	next[key] = value
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) writeLocked(values map[string]string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("write preferences %s: %w", s.path, err)
	}
	return nil
}

// DefaultPath returns the per-user location of the preferences file.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "signin", "preferences.json")
}
