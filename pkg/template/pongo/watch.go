package pongo

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch drops the template cache whenever a file under dirs changes. With no
// dirs it watches the base directory. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, dirs ...string) error {
	if len(dirs) == 0 && e.baseDir != "" {
		dirs = []string{e.baseDir}
	}
	if len(dirs) == 0 {
		return fmt.Errorf("pongo: nothing to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pongo: create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("pongo: watch %q: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			e.logger.Debug("pongo: template changed", "path", event.Name, "op", event.Op.String())
			e.Reset()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("pongo: watcher error", "error", err)
		}
	}
}
