// Package watch re-runs a gateway sync whenever the scanned directory
// changes.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentic-research/modgate/internal/logging"
	"github.com/agentic-research/modgate/internal/module"
	"github.com/agentic-research/modgate/internal/writeback"
)

// SyncFunc performs one synchronization of the watched directory.
type SyncFunc func(ctx context.Context) error

// Watcher watches one directory and its immediate subdirectories.
type Watcher struct {
	dir           string
	gateway       string
	watcher       *fsnotify.Watcher
	sync          SyncFunc
	logger        logging.Logger
	debounceDelay time.Duration
	mu            sync.Mutex
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	running       bool
}

// Option is a functional option for configuring the watcher.
type Option func(*Watcher)

// WithDebounceDelay sets how long the watcher waits for a burst of events to
// settle before syncing.
func WithDebounceDelay(delay time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for dir. gateway is the gateway's base name; events
// on it are ignored so the watcher never reacts to its own writes.
func New(dir, gateway string, fn SyncFunc, opts ...Option) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:           absDir,
		gateway:       gateway,
		watcher:       fsWatcher,
		sync:          fn,
		debounceDelay: 100 * time.Millisecond,
		logger:        logging.NopLogger(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start runs an initial sync, registers the watches and starts the event
// loop. An initial sync failure is returned and nothing is watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.register(ctx); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	w.logger.Info("watching directory", logging.String("dir", w.dir))

	go w.loop(ctx)
	return nil
}

func (w *Watcher) register(ctx context.Context) error {
	if err := w.sync(ctx); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addSubdir(filepath.Join(w.dir, e.Name()))
		}
	}
	return nil
}

// Stop stops the loop and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.stoppedCh
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("directory changed",
				logging.String("path", event.Name),
				logging.String("op", event.Op.String()),
			)
			if event.Op.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.dir {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addSubdir(event.Name)
				}
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounceDelay)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			if err := w.sync(ctx); err != nil {
				w.logger.Error("sync failed", logging.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", logging.Error(err))
		}
	}
}

// relevant filters out chmod-only events, the gateway itself and writeback
// temp files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if writeback.IsTempFile(base) {
		return false
	}
	if base == w.gateway && filepath.Dir(event.Name) == w.dir {
		return false
	}
	// inside a subdirectory only its index decides membership
	if filepath.Dir(event.Name) != w.dir && base != module.DirectoryIndex {
		return false
	}
	return true
}

func (w *Watcher) addSubdir(path string) {
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("cannot watch subdirectory", logging.String("path", path), logging.Error(err))
	}
}
