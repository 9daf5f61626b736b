package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scenepilot/scenepilot/pkg/types"
)

// GetSettings handles GET /api/settings - return the effective assistant
// settings for the request's session.
func (h *APIHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	eng, err := h.sessions.Get(sessionID(r))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, eng.Settings())
}

// PutSettings handles PUT /api/settings - validate, persist, and apply new
// assistant settings to every active session.
func (h *APIHandlers) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings types.AssistantSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse settings", err)
		return
	}
	if err := settings.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid settings", err)
		return
	}

	if h.settings != nil {
		if err := h.settings.Save(r.Context(), settings); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to persist settings", err)
			return
		}
	}

	if err := h.sessions.ApplySettings(settings); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to apply settings", err)
		return
	}

	// Caching is a gateway-wide switch.
	h.gateway.SetCaching(settings.EnableCaching)

	respondJSON(w, http.StatusOK, settings)
}
