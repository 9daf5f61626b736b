package handlers

import (
	"net/http"

	"github.com/scenepilot/scenepilot/internal/engine"
)

// StatsResponse is the response format for GET /api/stats.
type StatsResponse struct {
	Session  string       `json:"session"`
	Engine   engine.Stats `json:"engine"`
	Sessions []string     `json:"sessions"`
	Messages int          `json:"messages,omitempty"`
}

// Stats handles GET /api/stats - conversational state for the request's
// session plus the active session list.
func (h *APIHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	eng, err := h.sessions.Get(sid)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}

	resp := StatsResponse{
		Session:  sid,
		Engine:   eng.Stats(),
		Sessions: h.sessions.Sessions(),
	}
	if h.store != nil {
		if count, err := h.store.Count(r.Context(), sid); err == nil {
			resp.Messages = count
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
