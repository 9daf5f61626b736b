package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// SceneObject describes a single object in the host editor's scene.
type SceneObject struct {
	Name     string    `json:"name"`               // Object name, unique within the scene
	Type     string    `json:"type"`               // Host type (MESH, LIGHT, CAMERA, ...)
	Location []float64 `json:"location,omitempty"` // World-space position
	Selected bool      `json:"selected,omitempty"` // Whether the object is currently selected
}

// SceneMaterial describes a material defined in the scene.
type SceneMaterial struct {
	Name  string `json:"name"`
	Users int    `json:"users,omitempty"` // Number of objects using this material
}

// SceneLight describes a light in the scene.
type SceneLight struct {
	Name   string  `json:"name"`
	Type   string  `json:"type,omitempty"`   // POINT, SUN, SPOT, AREA
	Energy float64 `json:"energy,omitempty"` // Light intensity
}

// SceneSnapshot is the host editor's view of the current scene, attached to
// requests as context for classification, reference resolution, and code
// generation.
type SceneSnapshot struct {
	Objects      []SceneObject   `json:"objects,omitempty"`
	Materials    []SceneMaterial `json:"materials,omitempty"`
	Lights       []SceneLight    `json:"lights,omitempty"`
	ActiveObject string          `json:"active_object,omitempty"`
	Mode         string          `json:"mode,omitempty"`          // Editor mode (OBJECT, EDIT, ...)
	FrameCurrent int             `json:"frame_current,omitempty"` // Current animation frame
	RenderEngine string          `json:"render_engine,omitempty"`
	CapturedAt   time.Time       `json:"captured_at,omitempty"` // When the host captured this snapshot
}

// IsEmpty reports whether the snapshot carries no scene content.
func (s *SceneSnapshot) IsEmpty() bool {
	return s == nil || (len(s.Objects) == 0 && len(s.Materials) == 0 && len(s.Lights) == 0)
}

// SelectedObjects returns the names of currently selected objects in scene
// order.
func (s *SceneSnapshot) SelectedObjects() []string {
	if s == nil {
		return nil
	}
	var names []string
	for _, obj := range s.Objects {
		if obj.Selected {
			names = append(names, obj.Name)
		}
	}
	return names
}

// ObjectNames returns all object names in scene order.
func (s *SceneSnapshot) ObjectNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Objects))
	for _, obj := range s.Objects {
		names = append(names, obj.Name)
	}
	return names
}

// Fingerprint returns a stable hash of the snapshot's content. Objects,
// materials, and lights are name-sorted before hashing so logically equal
// snapshots produce the same value regardless of host ordering. Used for
// classification cache keys.
func (s *SceneSnapshot) Fingerprint() string {
	h := sha256.New()
	if s != nil {
		canon := struct {
			Objects      []SceneObject   `json:"objects"`
			Materials    []SceneMaterial `json:"materials"`
			Lights       []SceneLight    `json:"lights"`
			ActiveObject string          `json:"active_object"`
			Mode         string          `json:"mode"`
		}{
			Objects:      append([]SceneObject(nil), s.Objects...),
			Materials:    append([]SceneMaterial(nil), s.Materials...),
			Lights:       append([]SceneLight(nil), s.Lights...),
			ActiveObject: s.ActiveObject,
			Mode:         s.Mode,
		}
		sort.Slice(canon.Objects, func(i, j int) bool { return canon.Objects[i].Name < canon.Objects[j].Name })
		sort.Slice(canon.Materials, func(i, j int) bool { return canon.Materials[i].Name < canon.Materials[j].Name })
		sort.Slice(canon.Lights, func(i, j int) bool { return canon.Lights[i].Name < canon.Lights[j].Name })
		data, err := json.Marshal(canon)
		if err == nil {
			h.Write(data)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
