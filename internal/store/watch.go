package store

import (
	"context"
	"fmt"
	"path/filepath"

	"riskpilot/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Watch follows external edits to settings.json so an operator can
// flip the trading switch or adjust the global risk with a text editor
// while the bot runs. Only the settings file is watched; risk, comment
// and source files have the bot as their single writer.
//
// Blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: start watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors that write via
	// temp-and-rename replace the inode and break a file-level watch.
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("store: watch %s: %w", s.dir, err)
	}
	logger.Infof("Watching %s for settings changes", s.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(evt.Name) != settingsFile {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			s.reloadSettings()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Settings watcher error: %v", err)
		}
	}
}

func (s *Store) reloadSettings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next settings
	if err := s.loadFile(settingsFile, &next); err != nil {
		logger.Errorf("Settings reload failed, keeping previous values: %v", err)
		return
	}
	s.settings = next
	logger.Infof("Settings reloaded (trading_enabled=%v)", s.settings.TradingEnabled == nil || *s.settings.TradingEnabled)
}
