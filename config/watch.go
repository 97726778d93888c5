package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is the quiet period after the last event before a reload.
const settle = 100 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes the result
// to fn. It blocks until ctx is done. The parent directory is watched so
// that editors replacing the file are noticed.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			c, err := Load(path)
			if err != nil {
				slog.WarnContext(ctx, "config reload failed", "path", path, "error", err)
			} else {
				slog.InfoContext(ctx, "config reloaded", "path", path)
			}
			fn(c, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "config watcher error", "path", path, "error", err)
		}
	}
}
