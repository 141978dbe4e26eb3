package schema

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wippyai/rime-bridge/errors"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to schema and config files in a set of
// directories. Bursts of events are coalesced into a single callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	errChan  chan error
	cancel   context.CancelFunc
	done     chan struct{}
	dirs     []string
	onChange []func(path string)
	debounce time.Duration
	mu       sync.Mutex
}

// NewWatcher creates a watcher for dirs. Call OnChange before Start.
func NewWatcher(dirs ...string) *Watcher {
	return &Watcher{
		dirs:     dirs,
		debounce: DefaultDebounce,
		errChan:  make(chan error, 10),
	}
}

// SetDebounce changes the quiet period. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnChange registers a callback invoked with the last changed path of
// each burst.
func (w *Watcher) OnChange(cb func(path string)) {
	w.mu.Lock()
	w.onChange = append(w.onChange, cb)
	w.mu.Unlock()
}

// Errors returns a channel of watch errors. Errors are dropped when the
// channel is full.
func (w *Watcher) Errors() <-chan error {
	return w.errChan
}

// Start begins watching. The loop ends when ctx is cancelled or Close is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Load("create watcher", err)
	}
	for _, dir := range w.dirs {
		if dir == "" {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return errors.Load("watch directory "+dir, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var (
		timer *time.Timer
		last  string
		mu    sync.Mutex
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, configSuffix) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			mu.Lock()
			last = filepath.Clean(event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				path := last
				mu.Unlock()
				if ctx.Err() == nil {
					w.notify(path)
				}
			})
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errChan <- err:
			default:
			}
		}
	}
}

func (w *Watcher) notify(path string) {
	w.mu.Lock()
	cbs := slices.Clone(w.onChange)
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(path)
	}
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}
