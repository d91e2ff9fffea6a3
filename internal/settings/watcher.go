package settings

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"opengoat/pkg/logger"
)

const debounceDelay = 200 * time.Millisecond

// Watcher reloads the settings store when ui-settings.json changes and
// notifies subscribers.
type Watcher struct {
	store   *Watched
	watcher *fsnotify.Watcher
	path    string
	stopCh  chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Watched is the store plus its subscriber list.
type Watched struct {
	*Store

	mu   sync.Mutex
	subs []func(Settings)
}

// NewWatched wraps a store for subscription.
func NewWatched(store *Store) *Watched {
	return &Watched{Store: store}
}

// Subscribe registers a callback invoked after each reload.
func (w *Watched) Subscribe(fn func(Settings)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

func (w *Watched) notify() {
	current := w.Get()
	w.mu.Lock()
	subs := append([]func(Settings){}, w.subs...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(current)
	}
}

// Update persists settings and notifies subscribers immediately, so
// in-process changes do not wait for the file event.
func (w *Watched) Update(next Settings) error {
	if err := w.Store.Update(next); err != nil {
		return err
	}
	w.notify()
	return nil
}

// NewWatcher watches the settings file's directory. Watching the dir
// rather than the file survives the temp+rename writes.
func NewWatcher(store *Watched, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:   store,
		watcher: fw,
		path:    path,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("settings watcher error")
		}
	}
}

// scheduleReload debounces bursts of events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, func() {
		if err := w.store.Reload(); err != nil {
			logger.Warn().Err(err).Msg("settings reload failed; keeping previous values")
			return
		}
		logger.Debug().Msg("settings reloaded")
		w.store.notify()
	})
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
}
