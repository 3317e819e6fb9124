package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Watch monitors the config file and calls onChange with each freshly loaded
// configuration. The parent directory is watched so editor save-via-rename is
// caught. Reload failures are logged and skipped; the previous config stays
// active. Blocks until ctx is done.
func Watch(ctx context.Context, path string, logger zerolog.Logger, onChange func(*Config)) error {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		return fmt.Errorf("config watch: no config file to watch")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)

	reload := func() {
		cfg, err := Load(absPath, nil)
		if err != nil {
			logger.Warn().Err(err).Str("path", absPath).Msg("config reload failed, keeping previous")
			return
		}
		logger.Info().Str("path", absPath).Msg("config reloaded")
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, reload)
				mu.Unlock()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watch error")
		}
	}
}
