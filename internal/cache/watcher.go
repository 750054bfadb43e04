package cache

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is the default settle time before a rewrite of the
// cache file fires the change callback.
const DebounceInterval = 100 * time.Millisecond

// Watcher fires a callback when the cache file is rewritten by another
// process. The parent directory is watched rather than the file itself,
// so atomic temp-and-rename writes keep being seen. The callback runs on
// the watcher's goroutine.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	onChange  func()
	debounce  time.Duration
	log       *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher builds a watcher for the file at path. A zero debounce
// uses DebounceInterval. A nil logger falls back to slog.Default.
func NewWatcher(path string, debounce time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		path:      abs,
		onChange:  onChange,
		debounce:  debounce,
		log:       logger,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory must exist.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.eventLoop()
	return nil
}

// Stop shuts the watcher down. No callback fires after Stop returns.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	return w.fsWatcher.Close()
}

// Path returns the watched file path.
func (w *Watcher) Path() string { return w.path }

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Restart the settle timer; a burst of writes fires once.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("cache watch error", "error", err)
		}
	}
}
