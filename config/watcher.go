package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/logger"
)

// ReloadCallback is called when the watched config file is reloaded.
// It receives the freshly loaded config and returns any error.
type ReloadCallback func(*Config) error

// Watcher watches a config file for changes and triggers reload callbacks.
// Reloads are debounced so editors that write multiple times in quick
// succession trigger a single reload. Reload never happens mid-iteration:
// the engine reads its config once per IterateEdge call, so a reload takes
// effect on the next iteration boundary.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	ownWrite       bool
	ownWriteMu     sync.Mutex
}

// NewWatcher creates a watcher for the given config file path
func NewWatcher(configPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fsw.Add(configPath); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}

	return &Watcher{
		configPath:     configPath,
		watcher:        fsw,
		callbacks:      make([]ReloadCallback, 0),
		debouncePeriod: 500 * time.Millisecond, // Debounce rapid file changes
	}, nil
}

// OnReload registers a callback to be called when the config is reloaded
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// MarkOwnWrite marks the next write as coming from us (prevents reload loops)
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

// checkOwnWrite checks and clears the own-write flag
func (w *Watcher) checkOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start begins watching for config file changes
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Close stops the watcher and releases the fsnotify handle
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// watchLoop monitors file system events
func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if w.checkOwnWrite() {
					logger.Debugw("Config watcher ignoring own write", "file", event.Name)
					continue
				}
				logger.Infow("Config watcher detected change",
					"file", event.Name,
					"op", event.Op.String())
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorw("Config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces reload requests
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

// reload loads the config file and runs all registered callbacks
func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.configPath)
	if err != nil {
		logger.Errorw("Config reload failed", "file", w.configPath, "error", err)
		return
	}

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			logger.Errorw("Config reload callback failed", "file", w.configPath, "error", err)
		}
	}

	logger.Infow("Config reloaded", "file", w.configPath)
}
