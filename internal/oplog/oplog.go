// Package oplog records service operations as NDJSON, one JSON object per
// line, in a size-capped rolling file. It is opt-in via configuration; a
// disabled logger turns every call into a no-op.
package oplog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Operation names.
const (
	OpUploadReceived   = "upload_received"
	OpTranscribed      = "transcribed"
	OpTranscribeFailed = "transcribe_failed"
	OpCacheHit         = "cache_hit"
	OpClipCreated      = "clip_created"
	OpClipFailed       = "clip_failed"
	OpRetentionSweep   = "retention_sweep"
)

// Entry is one operation record.
type Entry struct {
	Timestamp string                 `json:"ts"` // RFC3339Nano, filled if empty
	Op        string                 `json:"op"`
	Name      string                 `json:"name,omitempty"`       // upload or clip filename
	RequestID string                 `json:"request_id,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// Logger appends entries to a rolling NDJSON file.
type Logger struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	size    int64
	maxSize int64
	enabled bool
}

// New opens (or creates) the NDJSON log at path, rolling at maxSize bytes.
// maxSize <= 0 selects a 5 MB default.
func New(path string, maxSize int64) (*Logger, error) {
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("oplog: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("oplog: stat %s: %w", path, err)
	}
	return &Logger{f: f, path: path, size: info.Size(), maxSize: maxSize, enabled: true}, nil
}

// NewNoOp returns a logger where every Log call does nothing.
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}

// Log serialises entry and appends it as one line. When the next write would
// exceed the size cap the file is truncated first, keeping the newest
// entries. Errors are swallowed: operation logging never fails a request.
func (l *Logger) Log(entry Entry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size+int64(len(data)) > l.maxSize {
		if err := l.f.Truncate(0); err != nil {
			return
		}
		if _, err := l.f.Seek(0, 0); err != nil {
			return
		}
		l.size = 0
	}
	n, err := l.f.Write(data)
	if err != nil {
		return
	}
	l.size += int64(n)
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.f.Sync()
	return l.f.Close()
}
