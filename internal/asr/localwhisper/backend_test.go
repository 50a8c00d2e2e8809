package localwhisper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeFakeCLI creates an executable shell script that emits the given JSON
// on stdout, standing in for a whisper binary.
func writeFakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-whisper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write fake CLI: %v", err)
	}
	return path
}

func TestTranscribeParsesOutput(t *testing.T) {
	bin := writeFakeCLI(t, `cat <<'EOF'
{
  "text": "testing one two",
  "language": "en",
  "segments": [
    {"id": 0, "start": 0.0, "end": 1.8, "text": "testing one two", "words": [
      {"text": "testing", "start": 0.0, "end": 0.7},
      {"text": "one", "start": 0.8, "end": 1.1},
      {"text": "two", "start": 1.2, "end": 1.8}
    ]}
  ]
}
EOF`)

	b := NewBackend(Config{BinaryPath: bin, Model: "base"})
	got, err := b.Transcribe(context.Background(), "sample.wav", strings.NewReader("pcm-bytes"))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if got.Text != "testing one two" {
		t.Errorf("unexpected text %q", got.Text)
	}
	if len(got.Segments) != 1 || len(got.Segments[0].Words) != 3 {
		t.Fatalf("unexpected segment shape: %+v", got.Segments)
	}
	if w := got.Segments[0].Words[2]; w.Text != "two" || w.Start != 1.2 {
		t.Errorf("unexpected word %+v", w)
	}
}

func TestTranscribeBadBinaryPath(t *testing.T) {
	b := NewBackend(Config{BinaryPath: "/nonexistent/whisper"})
	_, err := b.Transcribe(context.Background(), "sample.wav", strings.NewReader("pcm"))
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "binary not found") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestTranscribeInvalidJSON(t *testing.T) {
	bin := writeFakeCLI(t, `echo "not json"`)
	b := NewBackend(Config{BinaryPath: bin})
	_, err := b.Transcribe(context.Background(), "sample.wav", strings.NewReader("pcm"))
	if err == nil {
		t.Fatal("expected error for invalid JSON output")
	}
}

func TestTranscribeSubprocessFailure(t *testing.T) {
	bin := writeFakeCLI(t, `echo "model load failed" >&2; exit 3`)
	b := NewBackend(Config{BinaryPath: bin})
	_, err := b.Transcribe(context.Background(), "sample.wav", strings.NewReader("pcm"))
	if err == nil {
		t.Fatal("expected error for failing subprocess")
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}

func TestTranscribeTimeout(t *testing.T) {
	bin := writeFakeCLI(t, `sleep 5`)
	b := NewBackend(Config{BinaryPath: bin, TimeoutSeconds: 600})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Transcribe(ctx, "sample.wav", strings.NewReader("pcm"))
	if err == nil {
		t.Fatal("expected error when context expires")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("subprocess not killed promptly, took %v", elapsed)
	}
}

func TestBuildArgs(t *testing.T) {
	b := NewBackend(Config{BinaryPath: "/usr/bin/whisper", Model: "medium", Language: "en"})
	args := b.buildArgs("/tmp/a.wav")
	joined := strings.Join(args, " ")
	for _, want := range []string{"/tmp/a.wav", "--model medium", "--word-timestamps", "--language en"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}

	noLang := NewBackend(Config{BinaryPath: "/usr/bin/whisper"})
	if strings.Contains(strings.Join(noLang.buildArgs("/tmp/a.wav"), " "), "--language") {
		t.Error("args should omit --language when unset")
	}
}

func TestHealthCheck(t *testing.T) {
	bin := writeFakeCLI(t, `true`)
	b := NewBackend(Config{BinaryPath: bin})
	status, err := b.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if !status.OK {
		t.Errorf("expected OK health, got %+v", status)
	}

	missing := NewBackend(Config{BinaryPath: "/nonexistent/whisper"})
	status, err = missing.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if status.OK {
		t.Error("expected not-OK health for missing binary")
	}
}
