// wordclipd serves the word-clip service: audio uploads are transcribed
// with word-level timestamps, and selected words can be reassembled into
// new audio clips.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wordclip/wordclip/internal/asr"
	"github.com/wordclip/wordclip/internal/asr/localwhisper"
	"github.com/wordclip/wordclip/internal/asr/remotewhisper"
	"github.com/wordclip/wordclip/internal/clip"
	"github.com/wordclip/wordclip/internal/config"
	"github.com/wordclip/wordclip/internal/oplog"
	"github.com/wordclip/wordclip/internal/retention"
	"github.com/wordclip/wordclip/internal/server"
	"github.com/wordclip/wordclip/internal/store"
	"github.com/wordclip/wordclip/internal/transcript"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("wordclipd", Version)
		return
	}

	// A .env file is optional; real env vars still win over it.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(*configPath, log); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string, log *logrus.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	uploads, err := store.NewFS(cfg.UploadsDir)
	if err != nil {
		return fmt.Errorf("open uploads dir: %w", err)
	}
	clips, err := store.NewFS(cfg.ClipsDir)
	if err != nil {
		return fmt.Errorf("open clips dir: %w", err)
	}

	registry := buildRegistry(cfg, log)

	ops := oplog.NewNoOp()
	if cfg.OpLog.Enabled {
		ops, err = oplog.New(cfg.OpLog.Path, int64(cfg.OpLog.MaxSizeMB)<<20)
		if err != nil {
			return fmt.Errorf("open operation log: %w", err)
		}
		defer ops.Close()
	}

	srv := server.New(server.Options{
		Uploads:           uploads,
		Clips:             clips,
		Cache:             transcript.NewCache(uploads, registry, log),
		Assembler:         clip.NewAssembler(clips, time.Duration(cfg.MinClipMillis)*time.Millisecond),
		AllowedExtensions: cfg.AllowedExtensions,
		Health:            registry,
		Log:               log,
		Ops:               ops,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Retention.Enabled {
		janitor, err := retention.New(retention.Config{
			MaxAge:   time.Duration(cfg.Retention.MaxAgeHours) * time.Hour,
			Interval: time.Duration(cfg.Retention.SweepMinutes) * time.Minute,
		}, log, cfg.UploadsDir, cfg.ClipsDir)
		if err != nil {
			return fmt.Errorf("start retention janitor: %w", err)
		}
		go func() {
			if err := janitor.Run(ctx); err != nil {
				log.Errorf("retention janitor stopped: %v", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.ListenAddr,
			"backend": cfg.ASR.Backend,
			"version": Version,
		}).Info("wordclipd listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRegistry wires the configured transcription backends. Both backends
// are always registered so the fallback can differ from the primary.
func buildRegistry(cfg *config.Config, log *logrus.Logger) *asr.Registry {
	registry := asr.NewRegistry()

	registry.Register("remote", remotewhisper.NewClient(remotewhisper.Config{
		BaseURL:        cfg.ASR.Remote.BaseURL,
		Token:          cfg.ASR.Remote.Token,
		Model:          cfg.ASR.Remote.Model,
		Language:       cfg.ASR.Remote.Language,
		TimeoutSeconds: cfg.ASR.Remote.TimeoutSeconds,
		Retries:        cfg.ASR.Remote.Retries,
	}, log))

	registry.Register("local", localwhisper.NewBackend(localwhisper.Config{
		BinaryPath:     cfg.ASR.Local.BinaryPath,
		Model:          cfg.ASR.Local.Model,
		Language:       cfg.ASR.Local.Language,
		TimeoutSeconds: cfg.ASR.Local.TimeoutSeconds,
	}))

	registry.SetPrimary(cfg.ASR.Backend)
	if cfg.ASR.Fallback != "" {
		registry.SetFallback(cfg.ASR.Fallback)
	}
	return registry
}
