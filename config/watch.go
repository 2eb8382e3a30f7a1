package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 250 * time.Millisecond

type watchOptions struct {
	logger   *zap.Logger
	debounce time.Duration
}

type WatchOption func(*watchOptions)

func WithLogger(logger *zap.Logger) WatchOption {
	return func(o *watchOptions) {
		o.logger = logger
	}
}

func WithDebounce(debounce time.Duration) WatchOption {
	return func(o *watchOptions) {
		o.debounce = debounce
	}
}

// Watch reloads path after it changes and hands each valid config to fn.
// Invalid edits are logged and skipped. It blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config), opts ...WatchOption) error {
	if path == "" {
		return ErrBlankPath
	}
	options := &watchOptions{logger: zap.NewNop(), debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(options)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	var (
		debounce *time.Timer
		reload   <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(options.debounce)
			} else {
				debounce.Reset(options.debounce)
			}
			reload = debounce.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			options.logger.Warn("Config watcher error", zap.Error(err))
		case <-reload:
			reload = nil
			cfg, err := Load(target)
			if err != nil {
				options.logger.Warn("Ignoring invalid config change", zap.String("path", target), zap.Error(err))
				continue
			}
			options.logger.Info("Config reloaded", zap.String("path", target))
			fn(cfg)
		}
	}
}
