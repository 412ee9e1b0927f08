package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of writes (editors often write twice).
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes to the ledger files of a FileStore.
type Watcher struct {
	watcher  *fsnotify.Watcher
	names    map[string]bool
	debounce time.Duration
	logger   *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches the directory holding the store's ledgers.
func NewWatcher(store *FileStore, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	names := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range []string{store.FeaturesPath(), store.ContractsPath(), store.IntegrationTestsPath()} {
		names[filepath.Clean(p)] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &Watcher{
		watcher:  fw,
		names:    names,
		debounce: DefaultDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the quiet period before fn is called.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run calls fn with the changed file after each burst of ledger writes.
// It blocks until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(path string)) error {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.names[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Debug("ledger changed", zap.String("path", pending))
			fn(pending)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("ledger watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
