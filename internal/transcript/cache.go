// Package transcript persists transcription results next to their source
// audio and short-circuits repeat transcriptions of the same upload.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/wordclip/wordclip/internal/asr"
	"github.com/wordclip/wordclip/internal/store"
)

// cacheSuffix is appended to the audio filename to form the cache key, so
// uploads and their transcripts pair up 1:1 in the same store.
const cacheSuffix = ".json"

// Transcriber is the capability the cache needs from a speech-to-text
// backend. *asr.Registry and every asr backend satisfy it.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (*asr.Transcript, error)
}

// Cache is a read-through transcript cache over a blob store.
type Cache struct {
	store store.Store
	tr    Transcriber
	log   logrus.FieldLogger
}

// NewCache returns a cache that persists transcripts in s and computes
// missing ones with tr.
func NewCache(s store.Store, tr Transcriber, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{store: s, tr: tr, log: log}
}

// Key returns the cache key for an audio filename.
func Key(audioName string) string {
	return audioName + cacheSuffix
}

// GetOrCreate returns the transcript for the named audio, loading a cached
// entry when one exists and transcribing otherwise. The returned bool
// reports a cache hit. A failure to persist a fresh transcript is logged and
// swallowed: the transcript is still returned.
func (c *Cache) GetOrCreate(ctx context.Context, audioName string, audio []byte) (*asr.Transcript, bool, error) {
	key := Key(audioName)

	if c.store.Exists(key) {
		data, err := c.store.Get(key)
		if err == nil {
			var t asr.Transcript
			if err := json.Unmarshal(data, &t); err == nil {
				return &t, true, nil
			}
			c.log.WithField("key", key).Warn("transcript cache entry is corrupt, retranscribing")
		} else {
			c.log.WithField("key", key).Warnf("transcript cache read failed, retranscribing: %v", err)
		}
	}

	t, err := c.tr.Transcribe(ctx, audioName, bytes.NewReader(audio))
	if err != nil {
		return nil, false, fmt.Errorf("transcribe %s: %w", audioName, err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		c.log.WithField("key", key).Warnf("transcript cache encode failed: %v", err)
		return t, false, nil
	}
	if err := c.store.Put(key, data); err != nil {
		// Non-fatal: the caller still gets the fresh transcript.
		c.log.WithField("key", key).Warnf("transcript cache write failed: %v", err)
	}

	return t, false, nil
}
