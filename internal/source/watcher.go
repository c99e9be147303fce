package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Indexer is the slice of the index manager the watcher drives.
type Indexer interface {
	UpdateFile(ctx context.Context, path, text string) error
	RemoveFile(ctx context.Context, path string) error
}

// DefaultDebounce coalesces rapid write bursts (editors often write a file
// several times per save).
const DefaultDebounce = 500 * time.Millisecond

// Watcher follows filesystem changes under a source root and keeps the
// index in sync: writes re-index, removals and renames delete.
type Watcher struct {
	source   *FilesystemSource
	indexer  Indexer
	logger   *zap.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay before a changed file is re-indexed.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over the source's directory tree.
func NewWatcher(src *FilesystemSource, indexer Indexer, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		source:   src,
		indexer:  indexer,
		logger:   logger,
		debounce: DefaultDebounce,
		watcher:  fsw,
		stop:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers watches on every directory under the root and begins
// processing events until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.source.Root()); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
		w.wg.Wait()
	})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && filepath.Base(p)[0] == '.' {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	// New directories must be added to the watch set.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	if !w.source.Accepts(event.Name) {
		return
	}
	rel, err := filepath.Rel(w.source.Root(), event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if err := w.indexer.RemoveFile(ctx, rel); err != nil {
			w.logger.Warn("remove on watch event failed",
				zap.String("path", rel), zap.Error(err))
		}
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.scheduleReindex(ctx, rel)
	}
}

// scheduleReindex debounces per path: only the last event inside the window
// triggers work.
func (w *Watcher) scheduleReindex(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[rel]; ok {
		timer.Stop()
	}
	w.pending[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		w.mu.Unlock()
		w.reindex(ctx, rel)
	})
}

func (w *Watcher) reindex(ctx context.Context, rel string) {
	select {
	case <-w.stop:
		return
	default:
	}

	text, err := w.source.ReadFile(ctx, rel)
	if err != nil {
		// The file may have been removed inside the debounce window.
		w.logger.Debug("skipping re-index, file unreadable",
			zap.String("path", rel), zap.Error(err))
		return
	}
	if err := w.indexer.UpdateFile(ctx, rel, text); err != nil {
		w.logger.Warn("re-index on watch event failed",
			zap.String("path", rel), zap.Error(err))
		return
	}
	w.logger.Debug("re-indexed on change", zap.String("path", rel))
}
