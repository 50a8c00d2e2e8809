package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// FS is a Store backed by a single flat directory.
type FS struct {
	dir string
}

// NewFS creates the directory if needed and returns a filesystem store over it.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
	}
	return &FS{dir: dir}, nil
}

// Dir returns the backing directory path.
func (s *FS) Dir() string {
	return s.dir
}

// Put writes data under name atomically (temp file + rename), so a concurrent
// reader never observes a partially written entry.
func (s *FS) Put(name string, data []byte) error {
	if !validName(name) {
		return ErrBadName
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", name, err)
	}
	tmp = nil // prevent defer cleanup

	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: rename %s: %w", name, err)
	}
	return nil
}

// Get reads the entry stored under name.
func (s *FS) Get(name string) ([]byte, error) {
	if !validName(name) {
		return nil, ErrBadName
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether an entry is stored under name.
func (s *FS) Exists(name string) bool {
	if !validName(name) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// Delete removes the entry stored under name.
func (s *FS) Delete(name string) error {
	if !validName(name) {
		return ErrBadName
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", name, err)
	}
	return nil
}

// List returns the names of all stored entries.
func (s *FS) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
