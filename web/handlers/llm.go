package handlers

import (
	"net/http"
)

// TestConnection handles GET /api/llm/test-connection - issue a tiny
// completion against the configured provider and report the outcome.
func (h *APIHandlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	result := h.gateway.TestConnection(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, result)
}

// GatewayStats handles GET /api/llm/stats - gateway counters, cache state,
// and breaker state.
func (h *APIHandlers) GatewayStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gateway.Stats())
}

// GatewayConfig handles GET /api/llm/config - provider and model routing
// with masked keys.
func (h *APIHandlers) GatewayConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ToGatewayConfigResponse(h.config))
}

// ClearCache handles POST /api/llm/cache/clear - drop all cached responses.
func (h *APIHandlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.gateway.ClearCache()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
