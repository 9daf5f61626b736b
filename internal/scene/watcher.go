package scene

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/pkg/types"
)

// Watcher watches the scene drop-box directory and keeps the most recent
// snapshot. Each consumed file is removed after parsing.
type Watcher struct {
	dir      string
	callback func(*types.SceneSnapshot)
	logger   *zap.Logger

	mu      sync.RWMutex
	current *types.SceneSnapshot

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for {dataPath}/scene/. The callback, if
// non-nil, is invoked with each new snapshot after it becomes current.
func NewWatcher(dataPath string, callback func(*types.SceneSnapshot), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      filepath.Join(dataPath, "scene"),
		callback: callback,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Existing snapshot files are drained first, in
// name order, so the newest of a backlog wins. Call Stop() to clean up.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}

	w.drainExisting()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop()
	w.logger.Info("watching for scene snapshots", zap.String("dir", w.dir))
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

// Current returns the most recent snapshot, or nil if none has arrived.
func (w *Watcher) Current() *types.SceneSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// SetCurrent replaces the current snapshot directly, bypassing the
// drop-box. Used when the host pushes a snapshot over the HTTP API.
func (w *Watcher) SetCurrent(snapshot *types.SceneSnapshot) {
	w.mu.Lock()
	w.current = snapshot
	w.mu.Unlock()
	if snapshot != nil && w.callback != nil {
		w.callback(snapshot)
	}
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && strings.HasSuffix(evt.Name, ".scene.json") {
				w.processFile(evt.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("scene watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".scene.json") {
			w.processFile(filepath.Join(w.dir, entry.Name()))
		}
	}
}

func (w *Watcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}
	_ = os.Remove(path)

	var snapshot types.SceneSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		w.logger.Warn("invalid scene snapshot file",
			zap.String("file", filepath.Base(path)),
			zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = &snapshot
	w.mu.Unlock()

	if w.callback != nil {
		w.callback(&snapshot)
	}
}
