package asr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Registry manages transcription backends and supports fallback transcription.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Transcriber
	primary  string
	fallback string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Transcriber),
	}
}

// Register adds a backend to the registry. The first registered backend
// becomes the primary by default.
func (r *Registry) Register(name string, t Transcriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = t
	if r.primary == "" {
		r.primary = name
	}
}

// SetPrimary sets the primary backend by name.
func (r *Registry) SetPrimary(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = name
}

// SetFallback sets the fallback backend by name.
func (r *Registry) SetFallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Get returns a backend by name, or false if not found.
func (r *Registry) Get(name string) (Transcriber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.backends[name]
	return t, ok
}

// Primary returns the primary backend, or nil if none configured.
func (r *Registry) Primary() Transcriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[r.primary]
}

// Fallback returns the fallback backend, or nil if none configured.
func (r *Registry) Fallback() Transcriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback == "" {
		return nil
	}
	return r.backends[r.fallback]
}

// Name identifies the registry when it stands in for a single backend.
func (r *Registry) Name() string {
	return "registry"
}

// Transcribe tries the primary backend first, falling back on error. The
// audio stream is buffered so the fallback backend can replay it. This makes
// the registry itself satisfy the Transcriber interface.
func (r *Registry) Transcribe(ctx context.Context, filename string, audio io.Reader) (*Transcript, error) {
	r.mu.RLock()
	primaryName, fallbackName := r.primary, r.fallback
	r.mu.RUnlock()

	primary := r.Primary()
	if primary == nil {
		return nil, fmt.Errorf("asr: no primary backend configured")
	}

	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("asr: read audio: %w", err)
	}

	transcript, err := primary.Transcribe(ctx, filename, bytes.NewReader(data))
	if err == nil {
		return transcript, nil
	}

	fallback := r.Fallback()
	if fallback == nil {
		return nil, fmt.Errorf("asr: primary backend %q failed: %w", primaryName, err)
	}

	transcript, fbErr := fallback.Transcribe(ctx, filename, bytes.NewReader(data))
	if fbErr != nil {
		return nil, fmt.Errorf("asr: primary %q failed (%v), fallback %q also failed: %w", primaryName, err, fallbackName, fbErr)
	}

	return transcript, nil
}

// HealthCheck reports the primary backend's health.
func (r *Registry) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	primary := r.Primary()
	if primary == nil {
		return &HealthStatus{OK: false, Backend: r.Name(), Message: "no primary backend configured"}, nil
	}
	return primary.HealthCheck(ctx)
}
