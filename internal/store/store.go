// Package store provides a flat blob store abstraction keyed by filename.
// The service keeps all state (uploads, transcript cache entries, clips) in
// two such stores; the filesystem backend is used in production and the
// in-memory backend in tests.
package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotExist is returned when no entry exists under the given name.
	ErrNotExist = errors.New("store: entry does not exist")

	// ErrBadName is returned for names that are empty or contain path
	// separators. Stores are flat; nested paths are never valid keys.
	ErrBadName = errors.New("store: invalid entry name")
)

// Store is a flat, append-mostly blob store. Entries are immutable by
// convention: callers overwrite whole values, never patch them.
type Store interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Exists(name string) bool
	Delete(name string) error
	List() ([]string, error)
}

// validName reports whether name is usable as a flat store key.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}
