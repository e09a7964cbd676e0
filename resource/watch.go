package resource

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher reports changes to resource files in one or more directories.
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
		close(w.Events)
		close(w.Errors)
	})
	return err
}

// run coalesces bursts of events: a file is reported once it has been quiet
// for watchDebounce, so a save seen as truncate-then-write arrives once.
func (w *Watcher) run() {
	defer close(w.done)
	pending := make(map[string]struct{})
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isResourceFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(watchDebounce)
		case <-timer.C:
			for name := range pending {
				select {
				case w.Events <- name:
				case <-w.closeCh:
					return
				}
			}
			clear(pending)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

// Watch reloads the library whenever a file in dir changes. The returned
// watcher must be closed by the caller.
func (l *Library) Watch(dir string) (*Watcher, error) {
	w, err := NewWatcher(dir)
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			select {
			case name, ok := <-w.Events:
				if !ok {
					return
				}
				if err := l.Reload(); err != nil {
					l.logger.Warn("reload failed", "file", name, "error", err)
					continue
				}
				l.logger.Info("bank reloaded", "file", name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("watch error", "error", err)
			}
		}
	}()
	return w, nil
}

func isResourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".snd", ".wav", ".aud":
		return true
	}
	return false
}
