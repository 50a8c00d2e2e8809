// Package media shells out to ffmpeg for audio container conversion.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ToWAV converts encoded audio (mp3, m4a, ogg, ...) to 16-bit PCM WAV using
// ffmpeg. ext is the source extension including the leading dot. Sample rate
// and channel count are preserved.
func ToWAV(ctx context.Context, data []byte, ext string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "wordclip-media-")
	if err != nil {
		return nil, fmt.Errorf("media: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "in"+ext)
	if err := os.WriteFile(in, data, 0644); err != nil {
		return nil, fmt.Errorf("media: write input: %w", err)
	}
	out := filepath.Join(tmpDir, "out.wav")

	// ffmpeg -y -i input -acodec pcm_s16le output.wav
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", in,
		"-acodec", "pcm_s16le",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("media: ffmpeg: %w: %s", err, tail(stderr.Bytes(), 300))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("media: read output: %w", err)
	}
	return converted, nil
}

// tail returns the last n bytes of b as a string. ffmpeg writes the useful
// error last.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
