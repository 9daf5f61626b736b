package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scenepilot/scenepilot/pkg/types"
)

func testSnapshot(active string) *types.SceneSnapshot {
	return &types.SceneSnapshot{
		Objects: []types.SceneObject{
			{Name: "Cube", Type: "MESH", Selected: true},
			{Name: "Lamp", Type: "LIGHT"},
		},
		ActiveObject: active,
		Mode:         "OBJECT",
	}
}

func TestSnapshotWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir)

	if err := w.Write(testSnapshot("Cube")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "scene"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 snapshot file, got %d", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), ".scene.json") {
		t.Errorf("expected .scene.json suffix, got %s", entries[0].Name())
	}
}

func TestSnapshotWriterRejectsNil(t *testing.T) {
	w := NewSnapshotWriter(t.TempDir())
	if err := w.Write(nil); err == nil {
		t.Fatal("expected error for nil snapshot")
	}
}

func TestWatcherReceivesSnapshot(t *testing.T) {
	dir := t.TempDir()

	received := make(chan *types.SceneSnapshot, 1)
	watcher := NewWatcher(dir, func(s *types.SceneSnapshot) {
		received <- s
	}, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	writer := NewSnapshotWriter(dir)
	if err := writer.Write(testSnapshot("Cube")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case snap := <-received:
		if snap.ActiveObject != "Cube" {
			t.Errorf("expected active object Cube, got %s", snap.ActiveObject)
		}
		if len(snap.Objects) != 2 {
			t.Errorf("expected 2 objects, got %d", len(snap.Objects))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}

	current := watcher.Current()
	if current == nil || current.ActiveObject != "Cube" {
		t.Errorf("Current() did not return the received snapshot")
	}
}

func TestWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	// Write snapshots BEFORE starting the watcher; the last one
	// drained becomes current.
	writer := NewSnapshotWriter(dir)
	if err := writer.Write(testSnapshot("First")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := writer.Write(testSnapshot("Second")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	received := make(chan *types.SceneSnapshot, 10)
	watcher := NewWatcher(dir, func(s *types.SceneSnapshot) {
		received <- s
	}, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	if len(received) != 2 {
		t.Fatalf("expected 2 drained snapshots, got %d", len(received))
	}
	current := watcher.Current()
	if current == nil || current.ActiveObject != "Second" {
		t.Errorf("expected newest snapshot to be current")
	}

	// Files are consumed after parsing.
	entries, err := os.ReadDir(filepath.Join(dir, "scene"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected drop-box to be empty, found %d files", len(entries))
	}
}

func TestWatcherIgnoresInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	sceneDir := filepath.Join(dir, "scene")
	if err := os.MkdirAll(sceneDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sceneDir, "bad.scene.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	watcher := NewWatcher(dir, nil, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	if watcher.Current() != nil {
		t.Error("invalid file must not become current")
	}
}

func TestSetCurrent(t *testing.T) {
	received := make(chan *types.SceneSnapshot, 1)
	watcher := NewWatcher(t.TempDir(), func(s *types.SceneSnapshot) {
		received <- s
	}, nil)

	watcher.SetCurrent(testSnapshot("Pushed"))

	select {
	case snap := <-received:
		if snap.ActiveObject != "Pushed" {
			t.Errorf("expected Pushed, got %s", snap.ActiveObject)
		}
	default:
		t.Fatal("callback not invoked")
	}
	if watcher.Current().ActiveObject != "Pushed" {
		t.Error("Current() does not reflect SetCurrent")
	}
}
