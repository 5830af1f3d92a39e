// Package fswatch reloads the schema registry when its definition files
// change on disk.
package fswatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Reloader is implemented by *pipeline.Registry.
type Reloader interface {
	Reload() (*schema.Catalog, error)
}

// Watcher watches the directories holding the definition files, since
// editors and config-map updates replace files rather than write them in
// place, and reloads once changes settle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	reloader Reloader
	debounce time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewWatcher starts watching the given definition files. Empty paths are
// skipped.
func NewWatcher(paths []string, reloader Reloader, debounce time.Duration, clock clockwork.Clock, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsw,
		files:    make(map[string]bool),
		reloader: reloader,
		debounce: debounce,
		clock:    clock,
		logger:   logger,
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled, reloading after each settled burst of
// changes to a watched file. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer clockwork.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("definition file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = w.clock.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.Chan()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("definition watcher error", "error", err)

		case <-fire:
			fire = nil
			if c, err := w.reloader.Reload(); err == nil {
				w.logger.Info("definitions reloaded after change", "source", c.Source())
			}
		}
	}
}

func (w *Watcher) relevant(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(e.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}
