// Package remotewhisper implements an asr.Transcriber backed by a remote
// Whisper HTTP API that returns word-level timestamps.
package remotewhisper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wordclip/wordclip/internal/asr"
)

// Config configures the remote Whisper API client.
type Config struct {
	BaseURL        string
	Token          string // optional auth token, sent as Bearer
	Model          string // default "small"
	Language       string // "" = auto-detect
	TimeoutSeconds int    // default 300
	Retries        int    // default 3
}

// Client is an asr.Transcriber that calls a remote Whisper HTTP API.
type Client struct {
	cfg         Config
	client      *http.Client
	backoffBase time.Duration // default time.Second; tests override to 1ms
	log         logrus.FieldLogger
}

// NewClient creates a new remote Whisper API client.
func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		cfg:         cfg,
		backoffBase: time.Second,
		log:         log,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return "remote_whisper"
}

// transcribeResponse mirrors the JSON shape returned by the remote API,
// which follows the whisper word-timestamp output format.
type transcribeResponse struct {
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

// Transcribe sends the audio to the remote Whisper API and returns a parsed
// word-timestamped transcript. Transient errors (5xx, network) are retried
// with exponential backoff; the audio is buffered so each attempt can replay it.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (*asr.Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.log.WithFields(logrus.Fields{
				"backend":    c.Name(),
				"attempt":    attempt,
				"backoff_ms": backoff.Milliseconds(),
			}).Warn("retrying transcription")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := c.doTranscribe(ctx, filename, data)
		if err == nil {
			return result, nil
		}

		if !isRetryable(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("transcribe %s: %w", filename, err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("transcribe %s: all %d retries exhausted: %w", filename, c.cfg.Retries, lastErr)
}

// doTranscribe performs a single multipart POST to the transcription endpoint.
func (c *Client) doTranscribe(ctx context.Context, filename string, data []byte) (*asr.Transcript, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write the multipart body in a goroutine so the pipe feeds the request.
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()

		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			errCh <- fmt.Errorf("create form file: %w", err)
			return
		}
		if _, err := part.Write(data); err != nil {
			errCh <- fmt.Errorf("write audio data: %w", err)
			return
		}
		_ = writer.WriteField("model", c.cfg.Model)
		_ = writer.WriteField("language", c.cfg.Language)
		_ = writer.WriteField("word_timestamps", "true")

		errCh <- writer.Close()
	}()

	url := c.cfg.BaseURL + "/v1/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Unblock the writer goroutine if the request died before the
		// body was consumed.
		pr.Close()
		<-errCh
		return nil, &retryableError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	// Drain the multipart writer goroutine.
	if writeErr := <-errCh; writeErr != nil {
		return nil, fmt.Errorf("multipart write: %w", writeErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body, 200))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	transcript := &asr.Transcript{
		Text:     parsed.Text,
		Language: parsed.Language,
		Segments: make([]asr.Segment, len(parsed.Segments)),
	}
	for i, s := range parsed.Segments {
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

// HealthCheck queries the remote API health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (*asr.HealthStatus, error) {
	start := time.Now()
	url := c.cfg.BaseURL + "/v1/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &asr.HealthStatus{
			OK:      false,
			Backend: c.Name(),
			Message: fmt.Sprintf("health check failed: %v", err),
			Latency: latency,
		}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &asr.HealthStatus{
			OK:      false,
			Backend: c.Name(),
			Message: fmt.Sprintf("unhealthy: http %d: %s", resp.StatusCode, truncate(body, 200)),
			Latency: latency,
		}, nil
	}

	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &asr.HealthStatus{
			OK:      false,
			Backend: c.Name(),
			Message: fmt.Sprintf("invalid health response: %v", err),
			Latency: latency,
		}, nil
	}

	msg := "healthy"
	if !parsed.OK {
		msg = "service reports not ok"
	}

	return &asr.HealthStatus{
		OK:      parsed.OK,
		Backend: c.Name(),
		Message: msg,
		Latency: latency,
	}, nil
}

// retryableError wraps errors that should trigger a retry.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// isRetryable returns true for retryableError instances.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*retryableError)
	return ok
}

// backoff returns exponential backoff duration: base * 2^(attempt-1) + jitter.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.backoffBase
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	// Add jitter: 0–25% of delay.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

// truncate returns the first n bytes of body as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
