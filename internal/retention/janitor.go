// Package retention implements an optional janitor that deletes uploads and
// clips older than a configured age. The stores are otherwise append-only
// and grow without bound.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Config controls the janitor.
type Config struct {
	MaxAge   time.Duration // entries older than this are removed
	Interval time.Duration // sweep period; default 10m
}

// Janitor tracks files in the watched directories and periodically removes
// expired ones. New files are picked up through fsnotify between sweeps, so
// a sweep never has to rescan the directories.
type Janitor struct {
	cfg  Config
	dirs []string
	log  logrus.FieldLogger

	mu   sync.Mutex
	seen map[string]time.Time // path -> first seen
}

// New returns a janitor over the given directories.
func New(cfg Config, log logrus.FieldLogger, dirs ...string) (*Janitor, error) {
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention: MaxAge must be positive")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Janitor{cfg: cfg, dirs: dirs, log: log, seen: make(map[string]time.Time)}, nil
}

// Run watches the directories and sweeps on the configured interval until
// ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("retention: watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range j.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("retention: watch %s: %w", dir, err)
		}
	}
	if err := j.scan(); err != nil {
		return err
	}

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			j.track(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			j.log.Warnf("retention: watch error: %v", err)
		case <-ticker.C:
			j.sweep()
		}
	}
}

// scan seeds the tracked set with files already on disk, using their
// modification time as age.
func (j *Janitor) scan() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, dir := range j.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("retention: scan %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			j.seen[filepath.Join(dir, e.Name())] = info.ModTime()
		}
	}
	return nil
}

// track updates the tracked set from a filesystem event.
func (j *Janitor) track(ev fsnotify.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case ev.Op.Has(fsnotify.Create):
		j.seen[ev.Name] = time.Now()
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		delete(j.seen, ev.Name)
	}
}

// sweep removes every tracked file older than MaxAge.
func (j *Janitor) sweep() {
	cutoff := time.Now().Add(-j.cfg.MaxAge)

	j.mu.Lock()
	var expired []string
	for path, ts := range j.seen {
		if ts.Before(cutoff) {
			expired = append(expired, path)
		}
	}
	j.mu.Unlock()

	removed := 0
	for _, path := range expired {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			j.log.Warnf("retention: remove %s: %v", path, err)
			continue
		}
		removed++
		j.mu.Lock()
		delete(j.seen, path)
		j.mu.Unlock()
	}
	if removed > 0 {
		j.log.WithField("removed", removed).Info("retention sweep")
	}
}
