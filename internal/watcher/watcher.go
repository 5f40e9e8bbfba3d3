// Package watcher polls a library tree for added, modified and removed
// archives and reports each batch of changes to a callback.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huggablesquare/deputy/internal/archive"
	"github.com/huggablesquare/deputy/internal/logging"
)

// Event types.
const (
	EventCreate = "create"
	EventModify = "modify"
	EventDelete = "delete"
)

// Event represents a change to one archive, by path relative to the root.
type Event struct {
	Type string
	Path string
}

// Handler receives every non-empty batch of events from one poll.
type Handler func(ctx context.Context, events []Event)

// DefaultInterval is used when New is given a zero interval.
const DefaultInterval = 30 * time.Second

// Watcher polls a directory for archive changes.
type Watcher struct {
	root     string
	interval time.Duration
	onChange Handler

	mu    sync.Mutex
	state map[string]int64 // relative path -> mtime
	done  chan struct{}
	once  sync.Once
}

// New creates a watcher over root.
func New(root string, interval time.Duration, onChange Handler) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		root:     root,
		interval: interval,
		onChange: onChange,
		state:    make(map[string]int64),
		done:     make(chan struct{}),
	}
}

// Start records the current state and begins polling in the background.
func (w *Watcher) Start(ctx context.Context) error {
	state, err := w.snapshot()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()

	go w.watchLoop(ctx)
	return nil
}

// Stop stops polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *Watcher) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if events := w.checkChanges(); len(events) > 0 {
				logging.Info("library changed", zap.Int("changes", len(events)))
				w.onChange(ctx, events)
			}
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// snapshot records the mtime of every catalogable file under root. Hidden
// entries are skipped the same way the catalog builder skips them.
func (w *Watcher) snapshot() (map[string]int64, error) {
	state := make(map[string]int64)
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == w.root {
				return err
			}
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || archive.FormatFromPath(p) == archive.FormatUnknown {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(w.root, p)
		state[filepath.ToSlash(rel)] = info.ModTime().UnixNano()
		return nil
	})
	return state, err
}

func (w *Watcher) checkChanges() []Event {
	newState, err := w.snapshot()
	if err != nil {
		logging.Warn("library poll failed", zap.String("root", w.root), zap.Error(err))
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for p, mtime := range newState {
		old, exists := w.state[p]
		switch {
		case !exists:
			events = append(events, Event{Type: EventCreate, Path: p})
		case mtime != old:
			events = append(events, Event{Type: EventModify, Path: p})
		}
	}
	for p := range w.state {
		if _, exists := newState[p]; !exists {
			events = append(events, Event{Type: EventDelete, Path: p})
		}
	}

	w.state = newState
	return events
}
