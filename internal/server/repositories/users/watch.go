package users

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the cache whenever the store file is created, written,
// renamed or removed, including by other processes. It blocks until ctx is
// cancelled. The directory is watched rather than the file because saves
// replace the file by rename.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	s.logger.Info(ctx, "watching user store")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "stopping user store watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.Invalidate()
				s.logger.Debug(ctx, "user store changed on disk", "op", event.Op.String())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn(ctx, "user store watcher error", "error", err)
		}
	}
}
