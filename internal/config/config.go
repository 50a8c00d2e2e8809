// Package config holds all service configuration. There are no ambient
// globals: the loaded Config is passed explicitly to each component.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	ListenAddr        string   `yaml:"listen_addr"`
	UploadsDir        string   `yaml:"uploads_dir"`
	ClipsDir          string   `yaml:"clips_dir"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MinClipMillis     int      `yaml:"min_clip_millis"`
	LogLevel          string   `yaml:"log_level"`

	ASR       ASRConfig       `yaml:"asr"`
	Retention RetentionConfig `yaml:"retention"`
	OpLog     OpLogConfig     `yaml:"oplog"`
}

// ASRConfig selects and configures the transcription backends.
type ASRConfig struct {
	Backend  string       `yaml:"backend"`  // "remote" or "local"
	Fallback string       `yaml:"fallback"` // optional second backend
	Remote   RemoteConfig `yaml:"remote"`
	Local    LocalConfig  `yaml:"local"`
}

// RemoteConfig configures the remote Whisper API backend.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
}

// LocalConfig configures the local whisper CLI backend.
type LocalConfig struct {
	BinaryPath     string `yaml:"binary_path"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RetentionConfig controls the optional cleanup janitor. Disabled by
// default: uploads and clips then accumulate without bound, matching the
// documented resource-growth liability.
type RetentionConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxAgeHours  int  `yaml:"max_age_hours"`  // default 72
	SweepMinutes int  `yaml:"sweep_minutes"`  // default 10
}

// OpLogConfig controls the NDJSON operation log.
type OpLogConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"` // default 5
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		ListenAddr:        ":8080",
		UploadsDir:        "uploads",
		ClipsDir:          "clips",
		AllowedExtensions: []string{"wav", "mp3", "m4a", "ogg"},
		MinClipMillis:     1000,
		LogLevel:          "info",
		ASR: ASRConfig{
			Backend: "remote",
			Remote: RemoteConfig{
				BaseURL:        "http://localhost:9000",
				Model:          "medium",
				TimeoutSeconds: 300,
				Retries:        3,
			},
			Local: LocalConfig{
				BinaryPath:     "/usr/local/bin/whisper",
				Model:          "medium",
				TimeoutSeconds: 600,
			},
		},
		Retention: RetentionConfig{
			Enabled:      false,
			MaxAgeHours:  72,
			SweepMinutes: 10,
		},
		OpLog: OpLogConfig{
			Enabled:   false,
			Path:      "wordclip-ops.ndjson",
			MaxSizeMB: 5,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays a handful of deployment-sensitive settings from the
// environment. .env files are loaded by the caller before this runs.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("WORDCLIP_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("WORDCLIP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("WORDCLIP_ASR_URL"); v != "" {
		c.ASR.Remote.BaseURL = v
	}
	if v := os.Getenv("WORDCLIP_ASR_TOKEN"); v != "" {
		c.ASR.Remote.Token = v
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.UploadsDir == "" || c.ClipsDir == "" {
		return fmt.Errorf("uploads_dir and clips_dir must not be empty")
	}
	if c.UploadsDir == c.ClipsDir {
		return fmt.Errorf("uploads_dir and clips_dir must differ")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("allowed_extensions must not be empty")
	}
	if c.MinClipMillis <= 0 {
		return fmt.Errorf("min_clip_millis must be > 0")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.ASR.Backend {
	case "remote", "local":
	default:
		return fmt.Errorf("asr.backend must be \"remote\" or \"local\", got %q", c.ASR.Backend)
	}
	switch c.ASR.Fallback {
	case "", "remote", "local":
	default:
		return fmt.Errorf("asr.fallback must be empty, \"remote\" or \"local\", got %q", c.ASR.Fallback)
	}
	if c.ASR.Fallback == c.ASR.Backend {
		return fmt.Errorf("asr.fallback must differ from asr.backend")
	}

	if c.Retention.Enabled && c.Retention.MaxAgeHours <= 0 {
		return fmt.Errorf("retention.max_age_hours must be > 0 when retention is enabled")
	}
	if c.OpLog.Enabled && c.OpLog.Path == "" {
		return fmt.Errorf("oplog.path must not be empty when oplog is enabled")
	}
	return nil
}
