package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scenepilot/scenepilot/pkg/types"
)

// GetScene handles GET /api/scene - return the current scene snapshot.
func (h *APIHandlers) GetScene(w http.ResponseWriter, r *http.Request) {
	if h.scenes == nil {
		respondError(w, http.StatusServiceUnavailable, "scene exchange is disabled", nil)
		return
	}
	snapshot := h.scenes.Current()
	if snapshot == nil {
		respondError(w, http.StatusNotFound, "no scene snapshot available", nil)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// PutScene handles PUT /api/scene - the host pushes a snapshot directly,
// bypassing the drop-box.
func (h *APIHandlers) PutScene(w http.ResponseWriter, r *http.Request) {
	if h.scenes == nil {
		respondError(w, http.StatusServiceUnavailable, "scene exchange is disabled", nil)
		return
	}

	var snapshot types.SceneSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse scene snapshot", err)
		return
	}

	h.scenes.SetCurrent(&snapshot)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "accepted",
		"objects": len(snapshot.Objects),
	})
}
