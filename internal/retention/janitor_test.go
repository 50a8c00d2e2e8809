package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	return path
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	expired := writeFile(t, dir, "old.wav", 2*time.Hour)
	expiredJSON := writeFile(t, dir, "old.wav.json", 2*time.Hour)
	fresh := writeFile(t, dir, "fresh.wav", 0)

	j, err := New(Config{MaxAge: time.Hour}, nil, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.scan(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	j.sweep()

	for _, p := range []string{expired, expiredJSON} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", p)
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file must survive the sweep: %v", err)
	}
}

func TestSweepSpansMultipleDirs(t *testing.T) {
	uploads, clips := t.TempDir(), t.TempDir()
	oldUpload := writeFile(t, uploads, "a.wav", time.Hour)
	oldClip := writeFile(t, clips, "clip_1.wav", time.Hour)

	j, err := New(Config{MaxAge: time.Minute}, nil, uploads, clips)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.scan(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	j.sweep()

	for _, p := range []string{oldUpload, oldClip} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", p)
		}
	}
}

func TestNewRejectsZeroMaxAge(t *testing.T) {
	if _, err := New(Config{}, nil, t.TempDir()); err == nil {
		t.Fatal("expected error for zero MaxAge")
	}
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	j, err := New(Config{MaxAge: 50 * time.Millisecond, Interval: 20 * time.Millisecond}, nil, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	// Give the watcher a moment, then drop in a file.
	time.Sleep(50 * time.Millisecond)
	path := writeFile(t, dir, "late.wav", 0)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("file created after startup was never swept")
}
