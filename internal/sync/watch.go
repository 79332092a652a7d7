package sync

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeintel/internal/logging"
)

const watchDebounce = 300 * time.Millisecond

// Watch observes sourceDir for file writes/creates and invokes onChange with
// the changed file's path relative to sourceDir, debounced per-path so a
// burst of writes (editors that save in multiple passes) triggers one
// sync_single_file call. It blocks until ctx is canceled.
func Watch(ctx context.Context, sourceDir string, logger *logging.Logger, onChange func(relPath string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, sourceDir); err != nil {
		return err
	}

	pending := make(map[string]*time.Timer)
	fire := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			return nil
		case rel := <-fire:
			onChange(rel)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rel, err := filepath.Rel(sourceDir, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if t, ok := pending[rel]; ok {
				t.Stop()
			}
			pending[rel] = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- rel:
				case <-ctx.Done():
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Warn("sync: watch error", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
