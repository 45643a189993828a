package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// watcherDebounce lets the profile directory settle before setup. Browser
// profile drops create many entries in quick succession.
const watcherDebounce = 500 * time.Millisecond

// DirWatcher watches the sessions root for dropped-in session directories
// and sets them up automatically. Copying a persisted profile into the
// root is enough to bring the session online.
type DirWatcher struct {
	manager *Manager
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewDirWatcher starts watching the manager's sessions root.
func NewDirWatcher(manager *Manager) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(manager.storage.Root()); err != nil {
		watcher.Close()
		return nil, err
	}

	dw := &DirWatcher{
		manager: manager,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}
	go dw.run()
	return dw, nil
}

// Stop stops the watcher.
func (dw *DirWatcher) Stop() error {
	close(dw.stopCh)
	return dw.watcher.Close()
}

func (dw *DirWatcher) run() {
	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			id, ok := ParseSessionDir(filepath.Base(event.Name))
			if !ok {
				continue
			}
			dw.scheduleSetup(id)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Sessions directory watcher error")

		case <-dw.stopCh:
			return
		}
	}
}

// scheduleSetup debounces per id so one profile drop triggers one setup.
func (dw *DirWatcher) scheduleSetup(id string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if timer, ok := dw.timers[id]; ok {
		timer.Stop()
	}
	dw.timers[id] = time.AfterFunc(watcherDebounce, func() {
		dw.mu.Lock()
		delete(dw.timers, id)
		dw.mu.Unlock()

		if dw.manager.registry.Has(id) {
			return
		}
		log.Info().Str("sessionId", id).Msg("New session directory detected")
		if _, err := dw.manager.Setup(context.Background(), id); err != nil {
			log.Error().Str("sessionId", id).Err(err).Msg("Failed to set up detected session")
		}
	})
}
