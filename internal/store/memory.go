package store

import (
	"sort"
	"sync"
)

// Memory is an in-memory Store for tests and ephemeral deployments.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Put stores a copy of data under name.
func (s *Memory) Put(name string, data []byte) error {
	if !validName(name) {
		return ErrBadName
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = cp
	return nil
}

// Get returns a copy of the entry stored under name.
func (s *Memory) Get(name string) ([]byte, error) {
	if !validName(name) {
		return nil, ErrBadName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.entries[name]
	if !ok {
		return nil, ErrNotExist
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Exists reports whether an entry is stored under name.
func (s *Memory) Exists(name string) bool {
	if !validName(name) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Delete removes the entry stored under name.
func (s *Memory) Delete(name string) error {
	if !validName(name) {
		return ErrBadName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return ErrNotExist
	}
	delete(s.entries, name)
	return nil
}

// List returns the names of all stored entries, sorted.
func (s *Memory) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
