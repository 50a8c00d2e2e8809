// Package localwhisper shells out to a whisper CLI binary for on-host
// transcription with word-level timestamps.
package localwhisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/wordclip/wordclip/internal/asr"
)

// Config configures the local whisper CLI backend.
type Config struct {
	BinaryPath     string // path to a whisper CLI that prints JSON to stdout
	Model          string // model name (e.g. "small", "base")
	Language       string // "" = auto-detect
	TimeoutSeconds int    // default 600 (long files on CPU)
}

// Backend runs a whisper CLI subprocess per transcription request.
type Backend struct {
	cfg Config
}

// NewBackend creates a local whisper backend with the given config.
func NewBackend(cfg Config) *Backend {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 600
	}
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	return &Backend{cfg: cfg}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "local_whisper"
}

// cliOutput mirrors the whisper word-timestamp JSON printed by the CLI.
type cliOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe writes the audio to a temp file, invokes the whisper CLI and
// parses its JSON stdout. The subprocess is killed when ctx is cancelled or
// the configured timeout elapses.
func (b *Backend) Transcribe(ctx context.Context, filename string, audio io.Reader) (*asr.Transcript, error) {
	if _, err := os.Stat(b.cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("localwhisper: binary not found at %q: %w", b.cfg.BinaryPath, err)
	}

	tmpDir, err := os.MkdirTemp("", "wordclip-asr-")
	if err != nil {
		return nil, fmt.Errorf("localwhisper: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	audioPath := filepath.Join(tmpDir, "audio"+filepath.Ext(filename))
	f, err := os.Create(audioPath)
	if err != nil {
		return nil, fmt.Errorf("localwhisper: temp audio file: %w", err)
	}
	if _, err := io.Copy(f, audio); err != nil {
		f.Close()
		return nil, fmt.Errorf("localwhisper: write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("localwhisper: close temp audio: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(b.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.cfg.BinaryPath, b.buildArgs(audioPath)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("localwhisper: transcription timed out after %d seconds", b.cfg.TimeoutSeconds)
		}
		return nil, fmt.Errorf("localwhisper: subprocess failed: %w: %s", err, truncate(stderr.Bytes(), 200))
	}

	var output cliOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("localwhisper: parse JSON output: %w", err)
	}

	transcript := &asr.Transcript{
		Text:     output.Text,
		Language: output.Language,
		Segments: make([]asr.Segment, len(output.Segments)),
	}
	for i, s := range output.Segments {
		words := make([]asr.Word, len(s.Words))
		for j, w := range s.Words {
			words[j] = asr.Word{Text: w.Text, Start: w.Start, End: w.End}
		}
		transcript.Segments[i] = asr.Segment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
			Words: words,
		}
	}

	return transcript, nil
}

// buildArgs assembles the CLI arguments for a transcription run.
func (b *Backend) buildArgs(audioPath string) []string {
	args := []string{
		audioPath,
		"--model", b.cfg.Model,
		"--output-json",
		"--word-timestamps",
	}
	if b.cfg.Language != "" {
		args = append(args, "--language", b.cfg.Language)
	}
	return args
}

// HealthCheck verifies the CLI binary exists and is executable.
func (b *Backend) HealthCheck(ctx context.Context) (*asr.HealthStatus, error) {
	info, err := os.Stat(b.cfg.BinaryPath)
	if err != nil {
		return &asr.HealthStatus{
			OK:      false,
			Backend: b.Name(),
			Message: fmt.Sprintf("binary not found at %q", b.cfg.BinaryPath),
		}, nil
	}
	if info.Mode()&0111 == 0 {
		return &asr.HealthStatus{
			OK:      false,
			Backend: b.Name(),
			Message: fmt.Sprintf("%q is not executable", b.cfg.BinaryPath),
		}, nil
	}
	return &asr.HealthStatus{OK: true, Backend: b.Name(), Message: "healthy"}, nil
}

// truncate returns the first n bytes of b as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
