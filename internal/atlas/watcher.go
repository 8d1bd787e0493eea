package atlas

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches an atlas directory for changes and triggers a reload
// callback.
type Reloader struct {
	watcher *fsnotify.Watcher
	reload  func() error
}

// NewReloader creates a file watcher over the given atlas directory.
func NewReloader(dir string, reload func() error) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("atlas: create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("atlas: watch %q: %w", dir, err)
	}
	return &Reloader{watcher: watcher, reload: reload}, nil
}

// Run watches for manifest changes and reloads. Blocks until ctx is
// cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after last write before reloading
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := r.reload(); err != nil {
						fmt.Fprintf(os.Stderr, "atlas hot-reload failed: %v\n", err)
					} else {
						fmt.Fprintf(os.Stderr, "atlas hot-reload: manifests reloaded\n")
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "atlas watcher error: %v\n", err)
		}
	}
}
