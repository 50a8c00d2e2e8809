package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9090"
uploads_dir: /data/uploads
clips_dir: /data/clips
min_clip_millis: 500
asr:
  backend: local
  fallback: remote
  local:
    binary_path: /opt/whisper/bin/whisper
    model: base
retention:
  enabled: true
  max_age_hours: 24
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.ASR.Backend != "local" || cfg.ASR.Local.Model != "base" {
		t.Errorf("asr config not applied: %+v", cfg.ASR)
	}
	if cfg.MinClipMillis != 500 {
		t.Errorf("min_clip_millis = %d", cfg.MinClipMillis)
	}
	// Untouched fields keep defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("log_level default lost: %q", cfg.LogLevel)
	}
	if len(cfg.AllowedExtensions) != 4 {
		t.Errorf("allowed_extensions default lost: %v", cfg.AllowedExtensions)
	}
	if !cfg.Retention.Enabled || cfg.Retention.MaxAgeHours != 24 {
		t.Errorf("retention not applied: %+v", cfg.Retention)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"same dirs", func(c *Config) { c.ClipsDir = c.UploadsDir }},
		{"no extensions", func(c *Config) { c.AllowedExtensions = nil }},
		{"zero clip floor", func(c *Config) { c.MinClipMillis = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad backend", func(c *Config) { c.ASR.Backend = "cloud" }},
		{"fallback equals backend", func(c *Config) { c.ASR.Fallback = c.ASR.Backend }},
		{"retention without age", func(c *Config) { c.Retention.Enabled = true; c.Retention.MaxAgeHours = 0 }},
		{"oplog without path", func(c *Config) { c.OpLog.Enabled = true; c.OpLog.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WORDCLIP_LISTEN_ADDR", ":7070")
	t.Setenv("WORDCLIP_ASR_URL", "http://asr.internal:9000")
	t.Setenv("WORDCLIP_ASR_TOKEN", "secret")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.ListenAddr != ":7070" {
		t.Errorf("listen addr override lost: %q", cfg.ListenAddr)
	}
	if cfg.ASR.Remote.BaseURL != "http://asr.internal:9000" {
		t.Errorf("asr url override lost: %q", cfg.ASR.Remote.BaseURL)
	}
	if cfg.ASR.Remote.Token != "secret" {
		t.Errorf("asr token override lost")
	}
}
