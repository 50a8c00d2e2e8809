// Package asr defines the transcript model shared across the service and the
// pluggable speech-to-text backend interface that produces it.
package asr

import (
	"context"
	"io"
	"time"
)

// Word is the smallest transcribed unit with its own timing.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"` // seconds from the beginning of the audio
	End   float64 `json:"end"`
}

// Segment is a contiguous span of transcribed speech.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// Transcript is a complete word-timestamped transcription result.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Duration returns the end timestamp of the last segment in seconds,
// or 0 for an empty transcript.
func (t *Transcript) Duration() float64 {
	if t == nil || len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// HealthStatus reports backend health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Transcriber is the interface speech-to-text backends must implement.
// Transcribe consumes the audio stream and blocks until the backend has
// produced a full transcript; there are no partial results.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, filename string, audio io.Reader) (*Transcript, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
