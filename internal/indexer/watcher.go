package indexer

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/InSelfControll/context-broker-mcp/internal/ignore"
)

// debounceWindow batches filesystem event bursts into one invalidation.
const debounceWindow = 500 * time.Millisecond

// Watcher invalidates a project's cached index when files change, so the
// next search rebuilds instead of waiting for the mtime scan to notice.
type Watcher struct {
	registry *Registry
	root     string
	fw       *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching root and all non-ignored subdirectories.
// Call Close to stop.
func NewWatcher(registry *Registry, root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		registry: registry,
		root:     filepath.Clean(root),
		fw:       fw,
		done:     make(chan struct{}),
	}

	if err := w.addTree(w.root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// addTree registers root and every non-ignored directory beneath it.
func (w *Watcher) addTree(root string) error {
	rules := ignore.FromProject(w.root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr != nil {
				return nil
			}
			if rules.Match(filepath.ToSlash(rel), true) {
				return filepath.SkipDir
			}
		}
		if addErr := w.fw.Add(path); addErr != nil {
			log.Printf("watch failed for %s: %v", path, addErr)
		}
		return nil
	})
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// Newly created directories need their own watch
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Printf("watch failed for new directory %s: %v", event.Name, err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.registry.Invalidate(w.root)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("file watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
