// Package watcher reloads the setup tree when its file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/frontpage/internal/logging"
)

// FileWatcher delivers debounced batches of file changes to its handlers.
// Filters and handlers run on the watch goroutine.
type FileWatcher struct {
	fs     *fsnotify.Watcher
	delay  time.Duration
	logger logging.Logger

	mu       sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler

	stop     chan struct{}
	stopOnce sync.Once
}

// ChangeEvent is one file change after debouncing.
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType classifies a change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

var eventTypeNames = [...]string{"created", "modified", "deleted", "renamed"}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[e]
}

// FileFilter reports whether changes to path are of interest.
type FileFilter func(path string) bool

// ChangeHandler receives one debounced batch.
type ChangeHandler func(events []ChangeEvent) error

// NewFileWatcher creates a watcher that waits for delay of quiet before
// delivering a batch. A nil logger discards output.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileWatcher{
		fs:     fs,
		delay:  delay,
		logger: logger.WithComponent("watcher"),
		stop:   make(chan struct{}),
	}, nil
}

func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	fw.filters = append(fw.filters, filter)
	fw.mu.Unlock()
}

func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	fw.handlers = append(fw.handlers, handler)
	fw.mu.Unlock()
}

// AddPath watches a file or directory. Directories are not recursive.
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.fs.Add(cleanPath)
}

func validatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	for _, seg := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if seg == ".." {
			return "", fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return cleanPath, nil
}

// Start runs the watch loop in the background until ctx is done or Stop is
// called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the underlying watcher. It is safe
// to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stop)
		err = fw.fs.Close()
	})
	return err
}

func (fw *FileWatcher) run(ctx context.Context) {
	var (
		pending batch
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stop:
			return
		case ev, ok := <-fw.fs.Events:
			if !ok {
				return
			}
			change, keep := fw.translate(ev)
			if !keep {
				continue
			}
			pending.add(change)
			if timer == nil {
				timer = time.NewTimer(fw.delay)
			} else {
				timer.Reset(fw.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fw.dispatch(ctx, pending.drain())
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

// translate applies the filters and maps the fsnotify op. Attribute-only
// changes are dropped.
func (fw *FileWatcher) translate(ev fsnotify.Event) (ChangeEvent, bool) {
	fw.mu.RLock()
	filters := fw.filters
	fw.mu.RUnlock()
	for _, accept := range filters {
		if !accept(ev.Name) {
			return ChangeEvent{}, false
		}
	}

	change := ChangeEvent{Path: ev.Name}
	switch {
	case ev.Has(fsnotify.Create):
		change.Type = EventTypeCreated
	case ev.Has(fsnotify.Write):
		change.Type = EventTypeModified
	case ev.Has(fsnotify.Remove):
		change.Type = EventTypeDeleted
	case ev.Has(fsnotify.Rename):
		change.Type = EventTypeRenamed
	default:
		return ChangeEvent{}, false
	}
	return change, true
}

func (fw *FileWatcher) dispatch(ctx context.Context, events []ChangeEvent) {
	if len(events) == 0 {
		return
	}
	fw.mu.RLock()
	handlers := fw.handlers
	fw.mu.RUnlock()
	for _, handle := range handlers {
		if err := handle(events); err != nil {
			fw.logger.Error(ctx, err, "file watcher handler failed", "events", len(events))
		}
	}
}

// batch keeps one event per path, in first-seen order, carrying the most
// recent type.
type batch struct {
	index  map[string]int
	events []ChangeEvent
}

func (b *batch) add(e ChangeEvent) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	if i, ok := b.index[e.Path]; ok {
		b.events[i] = e
		return
	}
	b.index[e.Path] = len(b.events)
	b.events = append(b.events, e)
}

func (b *batch) drain() []ChangeEvent {
	events := b.events
	b.events = nil
	b.index = nil
	return events
}

// YAMLFilter accepts setup files.
func YAMLFilter(path string) bool {
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// NoHiddenFilter rejects editor swap and backup files such as .setup.yml.swp.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~")
}
