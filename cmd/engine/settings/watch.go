package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a FileStore whenever its file changes on disk, so that settings
// edited by another process (or `soundstage settings`) reach a running player.
type Watcher struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	handler func(Settings)
	log     *zap.Logger
	done    chan struct{}
}

// NewWatcher watches the directory holding the store's file; editors and
// os.WriteFile may replace the file rather than write it in place.
func NewWatcher(store *FileStore, handler func(Settings), log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		store:   store,
		watcher: fsw,
		handler: handler,
		log:     log.Named("settings"),
		done:    make(chan struct{}),
	}, nil
}

// Start watches until Stop is called.
func (w *Watcher) Start() {
	target := filepath.Clean(w.store.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Small delay to ensure file is fully written
			time.Sleep(10 * time.Millisecond)
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("settings watch error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a background goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) reload() {
	s, err := w.store.Load(context.Background())
	if err != nil {
		w.log.Warn("ignoring unreadable settings file", zap.String("path", w.store.Path()), zap.Error(err))
		return
	}
	w.handler(s)
}
