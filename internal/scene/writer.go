// Package scene provides cross-process scene snapshot exchange between the
// host editor plugin and the bridge using a filesystem drop-box. The plugin
// writes `*.scene.json` files into {dataPath}/scene/; the bridge watches the
// directory and keeps the most recent snapshot available to the pipeline.
package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scenepilot/scenepilot/pkg/types"
)

// SnapshotWriter writes scene snapshot files to the drop-box directory.
// Used by the REPL and by tests; the editor plugin writes the same format.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter creates a writer that emits snapshots to {dataPath}/scene/.
func NewSnapshotWriter(dataPath string) *SnapshotWriter {
	return &SnapshotWriter{dir: filepath.Join(dataPath, "scene")}
}

// Dir returns the drop-box directory.
func (w *SnapshotWriter) Dir() string {
	return w.dir
}

// Write marshals the snapshot to a new drop-box file. Safe to call
// concurrently. The timestamp prefix keeps files ordered by creation.
func (w *SnapshotWriter) Write(snapshot *types.SceneSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("scene: nil snapshot")
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("scene: mkdir %s: %w", w.dir, err)
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("scene: marshal snapshot: %w", err)
	}

	filename := fmt.Sprintf("%d.scene.json", time.Now().UnixNano())
	path := filepath.Join(w.dir, filename)

	// Write to a temp name first so the watcher never sees a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("scene: write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}
