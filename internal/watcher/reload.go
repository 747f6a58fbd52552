package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/pagecache"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// DefaultDelay is the debounce delay used by Watch.
const DefaultDelay = 300 * time.Millisecond

// SetupReloader swaps the live setup tree for the content of its file and
// drops every cached page built from the old tree.
type SetupReloader struct {
	path   string
	live   *tstree.Live
	cache  pagecache.Store
	logger logging.Logger

	// mu serialises reloads so an older parse never overwrites a newer one.
	mu sync.Mutex
}

// NewSetupReloader creates a reloader for the setup file at path. cache may
// be nil.
func NewSetupReloader(path string, live *tstree.Live, cache pagecache.Store, logger logging.Logger) *SetupReloader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &SetupReloader{
		path:   path,
		live:   live,
		cache:  cache,
		logger: logger.WithComponent("setup-reload"),
	}
}

// Path returns the absolute path of the watched setup file.
func (r *SetupReloader) Path() string {
	return r.path
}

// Reload parses the setup file and installs it. On a parse error the current
// tree stays in place.
func (r *SetupReloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := logging.StartOperation(r.logger, "setup reload")
	tree, err := tstree.LoadFile(r.path)
	if err != nil {
		r.logger.Warn(ctx, err, "keeping previous setup", "path", r.path)
		return err
	}
	r.live.Store(tree)

	if r.cache != nil {
		if err := r.cache.Flush(ctx); err != nil {
			op.EndWithError(ctx, err)
			return fmt.Errorf("flush page cache: %w", err)
		}
	}
	r.logger.Info(ctx, "setup reloaded", "path", r.path, "keys", tree.Len())
	op.End(ctx)
	return nil
}

// HandleChanges is a ChangeHandler that reloads when the setup file was
// written or replaced.
func (r *SetupReloader) HandleChanges(events []ChangeEvent) error {
	for _, event := range events {
		if event.Type == EventTypeDeleted || event.Type == EventTypeRenamed {
			continue
		}
		if abs, err := filepath.Abs(event.Path); err != nil || abs != r.path {
			continue
		}
		return r.Reload(context.Background())
	}
	return nil
}

// Watch starts a FileWatcher on the directory of the reloader's setup file.
// Watching the directory keeps working when editors replace the file by
// renaming a temporary one over it.
func Watch(ctx context.Context, r *SetupReloader, delay time.Duration) (*FileWatcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fw, err := NewFileWatcher(delay, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddFilter(YAMLFilter)
	fw.AddFilter(NoHiddenFilter)
	fw.AddHandler(r.HandleChanges)

	if err := fw.AddPath(filepath.Dir(r.path)); err != nil {
		_ = fw.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", r.path, err)
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return fw, nil
}
