package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// ListTranscript handles GET /api/transcript - list messages for the
// request's session with pagination.
func (h *APIHandlers) ListTranscript(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "transcript store is disabled", nil)
		return
	}

	opts := transcript.ListOptions{
		SessionID: sessionID(r),
		Page:      parseInt(r.URL.Query().Get("page"), 1),
		Limit:     parseInt(r.URL.Query().Get("limit"), 50),
		SortOrder: r.URL.Query().Get("sort_order"),
	}
	opts.Normalize()

	result, err := h.store.List(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list transcript", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ClearTranscript handles DELETE /api/transcript - remove the session's
// persisted history.
func (h *APIHandlers) ClearTranscript(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "transcript store is disabled", nil)
		return
	}

	if err := h.store.Clear(r.Context(), sessionID(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear transcript", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportTranscript handles GET /api/transcript/export - produce the JSON
// export document for the session.
func (h *APIHandlers) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "transcript store is disabled", nil)
		return
	}

	export, err := transcript.Export(r.Context(), h.store, sessionID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export transcript", err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="transcript.json"`)
	respondJSON(w, http.StatusOK, export)
}

// ImportTranscript handles POST /api/transcript/import - load an export
// document into the store.
func (h *APIHandlers) ImportTranscript(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "transcript store is disabled", nil)
		return
	}

	var export types.TranscriptExport
	if err := json.NewDecoder(r.Body).Decode(&export); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse export document", err)
		return
	}

	imported, err := transcript.Import(r.Context(), h.store, &export)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to import transcript", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"imported": imported,
	})
}
