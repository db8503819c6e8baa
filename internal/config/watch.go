package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads configPath whenever it changes and passes every valid
// configuration to onChange. Invalid files are logged and ignored so the
// previous configuration stays in effect. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file itself, since editors
// commonly replace files by renaming over them.
func Watch(ctx context.Context, configPath string, logger *log.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = log.Default()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load(absPath)
			if err != nil {
				logger.Printf("Warning: config reload failed, keeping previous config: %v", err)
				continue
			}
			logger.Printf("Reloaded config from %s (%d pages)", absPath, len(cfg.Pages))
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("Warning: config watcher error: %v", err)
		}
	}
}
