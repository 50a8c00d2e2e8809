// Package clip assembles new audio files from selected time spans of an
// uploaded recording.
package clip

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/wordclip/wordclip/internal/media"
	"github.com/wordclip/wordclip/internal/store"
)

// Span selects [Start, End) seconds of source audio. Spans are applied in
// the order given, so callers can reorder or repeat words to build phrases.
// A span with End <= Start contributes nothing.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Assembler cuts spans out of uploaded audio and writes the concatenation as
// a new WAV file into the clips store.
type Assembler struct {
	clips       store.Store
	minDuration time.Duration
	now         func() time.Time
}

// NewAssembler returns an assembler writing into clips. minDuration is the
// silence-padded duration floor for generated clips; 0 selects the default
// of one second.
func NewAssembler(clips store.Store, minDuration time.Duration) *Assembler {
	if minDuration <= 0 {
		minDuration = time.Second
	}
	return &Assembler{clips: clips, minDuration: minDuration, now: time.Now}
}

// Assemble decodes the source audio, extracts each span in order, pads the
// result up to the duration floor with trailing silence, and stores it as
// clip_<unix>.wav. It returns the stored clip filename.
//
// Span bounds are converted to milliseconds by truncation and clamped to the
// decoded audio; out-of-range spans degrade to empty or truncated cuts
// rather than failing the request.
func (a *Assembler) Assemble(ctx context.Context, sourceName string, data []byte, spans []Span) (string, error) {
	ext := strings.ToLower(path.Ext(sourceName))
	if ext != ".wav" {
		converted, err := media.ToWAV(ctx, data, ext)
		if err != nil {
			return "", fmt.Errorf("clip: convert %s: %w", sourceName, err)
		}
		data = converted
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return "", fmt.Errorf("clip: decode %s: %w", sourceName, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return "", fmt.Errorf("clip: decode %s: missing PCM format", sourceName)
	}

	out := cut(buf, spans)
	out = padToFloor(out, buf.Format, a.minDuration)

	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = 16
	}

	encoded, err := encodeWAV(out, buf.Format, bitDepth)
	if err != nil {
		return "", fmt.Errorf("clip: encode: %w", err)
	}

	name := a.clipName()
	if err := a.clips.Put(name, encoded); err != nil {
		return "", fmt.Errorf("clip: store %s: %w", name, err)
	}
	return name, nil
}

// cut extracts the spans from buf in the order given and returns the
// concatenated interleaved samples.
func cut(buf *audio.IntBuffer, spans []Span) []int {
	sr := buf.Format.SampleRate
	ch := buf.Format.NumChannels
	totalFrames := len(buf.Data) / ch

	var out []int
	for _, s := range spans {
		// Seconds to milliseconds, truncating toward zero.
		startMs := int(s.Start * 1000)
		endMs := int(s.End * 1000)

		startFrame := msToFrames(startMs, sr)
		endFrame := msToFrames(endMs, sr)

		// Clamp to the decoded audio.
		if startFrame < 0 {
			startFrame = 0
		}
		if endFrame > totalFrames {
			endFrame = totalFrames
		}
		if endFrame <= startFrame {
			continue // empty or inverted span
		}

		out = append(out, buf.Data[startFrame*ch:endFrame*ch]...)
	}
	return out
}

// padToFloor appends silence so the clip is at least floor long.
func padToFloor(samples []int, format *audio.Format, floor time.Duration) []int {
	floorFrames := msToFrames(int(floor.Milliseconds()), format.SampleRate)
	frames := len(samples) / format.NumChannels
	if frames >= floorFrames {
		return samples
	}
	return append(samples, make([]int, (floorFrames-frames)*format.NumChannels)...)
}

// msToFrames converts a millisecond offset to a frame index at sampleRate.
func msToFrames(ms, sampleRate int) int {
	return ms * sampleRate / 1000
}

// encodeWAV writes the interleaved samples as a WAV file in memory.
func encodeWAV(samples []int, format *audio.Format, bitDepth int) ([]byte, error) {
	var w seekBuffer
	enc := wav.NewEncoder(&w, format.SampleRate, bitDepth, format.NumChannels, 1)
	out := &audio.IntBuffer{Format: format, Data: samples, SourceBitDepth: bitDepth}
	if err := enc.Write(out); err != nil {
		return nil, fmt.Errorf("write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize header: %w", err)
	}
	return w.Bytes(), nil
}

// clipName generates a second-resolution timestamped filename. Two clips in
// the same second get numeric suffixes instead of overwriting each other.
func (a *Assembler) clipName() string {
	base := "clip_" + strconv.FormatInt(a.now().Unix(), 10)
	name := base + ".wav"
	for i := 2; a.clips.Exists(name); i++ {
		name = base + "_" + strconv.Itoa(i) + ".wav"
	}
	return name
}
