package events

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher turns edits made to the data directory by other processes into
// external_change events.
type Watcher struct {
	fw       *fsnotify.Watcher
	root     string
	pub      Publisher
	log      *zap.Logger
	debounce time.Duration
	ignore   func(path string) bool

	mu      sync.Mutex
	pending map[string]time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long a path must stay quiet before it is reported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithIgnore skips paths for which fn returns true, typically the
// process's own writes.
func WithIgnore(fn func(path string) bool) WatcherOption {
	return func(w *Watcher) { w.ignore = fn }
}

// NewWatcher watches dirs, which must live under root.
func NewWatcher(root string, dirs []string, pub Publisher, log *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fw:       fw,
		root:     root,
		pub:      pub,
		log:      log,
		debounce: defaultDebounce,
		pending:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(w)
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", d, err)
		}
	}
	return w, nil
}

// Run processes filesystem events until ctx is done, then releases the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	interval := w.debounce / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		case <-tick.C:
			w.flush(time.Now())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".json") || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	if w.ignore != nil && w.ignore(ev.Name) {
		return
	}
	w.log.Debug("data file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// flush publishes every path that has been quiet for the debounce window.
func (w *Watcher) flush(now time.Time) {
	var ready []string
	w.mu.Lock()
	for p, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	w.mu.Unlock()

	for _, p := range ready {
		entity, id, ok := Classify(w.root, p)
		if !ok {
			continue
		}
		w.pub.Publish(Event{Type: TypeExternalChange, Entity: entity, ID: id, At: now.UTC()})
	}
}

// Classify maps a data file path to the entity it stores. Files holding a
// whole collection report an empty id.
func Classify(root, path string) (entity, id string, ok bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}
	dir, file := filepath.Split(filepath.ToSlash(rel))
	base := strings.TrimSuffix(file, ".json")
	switch dir {
	case "projects/":
		return EntityProject, base, true
	case "provisioners/":
		return EntityProvisioner, base, true
	case "triggers/":
		return EntityTrigger, base, true
	case "boxes/":
		return EntityBox, "", true
	case "":
		if file == "plugins.json" {
			return EntityPlugin, "", true
		}
	}
	return "", "", false
}
