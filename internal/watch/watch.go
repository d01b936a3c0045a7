// Package watch re-runs a task whenever one of a set of files changes.
package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of events (editors often write twice).
const DefaultDebounce = 100 * time.Millisecond

// RunFunc is the task executed on start and after each change.
type RunFunc func(ctx context.Context) error

// Option customises a Watch call.
type Option func(*settings)

type settings struct {
	logger   *slog.Logger
	debounce time.Duration
}

// WithLogger injects the logger used for run failures and watcher errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce. Zero runs on every event.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// Watch runs fn once, then again each time one of files is written or
// created. Runs are sequential; their errors are logged, not returned.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, files []string, fn RunFunc, opts ...Option) error {
	if fn == nil {
		return errors.New("watch: run func is required")
	}
	s := settings{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Parent directories are watched so files replaced by rename are still seen.
	targets := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{}, len(files))
	for _, name := range files {
		abs, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		targets[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		dirs[dir] = struct{}{}
	}

	run := func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("run failed", "error", err)
		}
	}
	run()
	s.logger.Info("watching for changes", "files", len(targets))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, targets) {
				continue
			}
			s.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			if s.debounce == 0 {
				run()
				continue
			}
			pending = time.After(s.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case <-pending:
			pending = nil
			run()
		}
	}
}

func relevant(event fsnotify.Event, targets map[string]struct{}) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := targets[abs]
	return ok
}
