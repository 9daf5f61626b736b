package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/scene"
	"github.com/scenepilot/scenepilot/internal/services"
	"github.com/scenepilot/scenepilot/internal/session"
	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// APIHandlers contains the HTTP handlers for the bridge REST API.
type APIHandlers struct {
	sessions *session.Manager
	gateway  *llm.Gateway
	store    transcript.Store
	settings *services.SettingsService
	scenes   *scene.Watcher
	hub      *WebSocketHub
	config   *config.Config
	logger   *zap.Logger
}

// Deps bundles the collaborators the API handlers need.
type Deps struct {
	Sessions *session.Manager
	Gateway  *llm.Gateway
	Store    transcript.Store
	Settings *services.SettingsService
	Scenes   *scene.Watcher
	Hub      *WebSocketHub
	Config   *config.Config
	Logger   *zap.Logger
}

// NewAPIHandlers creates an APIHandlers instance.
func NewAPIHandlers(deps Deps) *APIHandlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandlers{
		sessions: deps.Sessions,
		gateway:  deps.Gateway,
		store:    deps.Store,
		settings: deps.Settings,
		scenes:   deps.Scenes,
		hub:      deps.Hub,
		config:   deps.Config,
		logger:   logger,
	}
}

// sessionID resolves the session for a request from the X-Session-ID header,
// falling back to the default session.
func sessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	return session.DefaultSession
}

// Chat handles POST /api/chat - process one user input through the pipeline.
// With "async": true the request is queued and the result is delivered over
// the WebSocket hub tagged with the returned job id.
func (h *APIHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if req.Input == "" {
		respondError(w, http.StatusBadRequest, "input is required", nil)
		return
	}

	sid := sessionID(r)
	eng, err := h.sessions.Get(sid)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}

	currentScene := h.currentScene()

	if req.Async {
		jobID, results, err := eng.ProcessAsync(context.Background(), req.Input, currentScene)
		if err != nil {
			respondError(w, http.StatusConflict, "engine busy", err)
			return
		}
		// The request context dies when this handler returns; the job and
		// its transcript write outlive it.
		go func() {
			if result := <-results; result != nil {
				h.recordExchange(context.Background(), sid, req.Input, result)
			}
		}()
		respondJSON(w, http.StatusAccepted, AsyncAccepted{JobID: jobID, Status: "processing"})
		return
	}

	result := eng.Process(r.Context(), req.Input, currentScene)
	h.recordExchange(r.Context(), sid, req.Input, result)
	respondJSON(w, http.StatusOK, result)
}

// GetPlan handles GET /api/plans/{id} - retrieve a stored plan.
func (h *APIHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "plan ID is required", nil)
		return
	}

	eng, err := h.sessions.Get(sessionID(r))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}

	plan, ok := eng.Plan(id)
	if !ok {
		respondError(w, http.StatusNotFound, "plan not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// ExecuteStep handles POST /api/plans/{id}/steps/{number} - execute one step
// of a stored plan. An "async": true body queues the step instead.
func (h *APIHandlers) ExecuteStep(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "plan ID is required", nil)
		return
	}
	stepNumber, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || stepNumber < 1 {
		respondError(w, http.StatusBadRequest, "invalid step number", err)
		return
	}

	// The body is optional; absent or unparseable bodies run synchronously.
	var req ExecuteStepRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	sid := sessionID(r)
	eng, err := h.sessions.Get(sid)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}

	if req.Async {
		jobID, results, err := eng.ExecutePlanStepAsync(context.Background(), id, stepNumber)
		if err != nil {
			respondError(w, http.StatusConflict, "engine busy", err)
			return
		}
		go func() {
			if result := <-results; result != nil {
				h.recordStepResult(context.Background(), sid, result)
			}
		}()
		respondJSON(w, http.StatusAccepted, AsyncAccepted{JobID: jobID, Status: "processing"})
		return
	}

	result := eng.ExecutePlanStep(r.Context(), id, stepNumber)
	h.recordStepResult(r.Context(), sid, result)
	respondJSON(w, http.StatusOK, result)
}

// ExecutePlan handles POST /api/plans/{id}/execute - run all steps of a
// plan in order, returning the combined code.
func (h *APIHandlers) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "plan ID is required", nil)
		return
	}

	sid := sessionID(r)
	eng, err := h.sessions.Get(sid)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}

	result := eng.ExecutePlan(r.Context(), id)
	h.recordStepResult(r.Context(), sid, result)
	respondJSON(w, http.StatusOK, result)
}

// ClearConversation handles POST /api/conversation/clear - reset the
// session's conversation memory.
func (h *APIHandlers) ClearConversation(w http.ResponseWriter, r *http.Request) {
	eng, err := h.sessions.Get(sessionID(r))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session unavailable", err)
		return
	}
	eng.ClearConversation()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// currentScene returns the watcher's latest snapshot, or nil without a
// watcher.
func (h *APIHandlers) currentScene() *types.SceneSnapshot {
	if h.scenes == nil {
		return nil
	}
	return h.scenes.Current()
}

// recordExchange persists a user/assistant exchange to the transcript and
// broadcasts the assistant message to WebSocket clients. Async callers pass
// a background context since the originating request is long gone.
func (h *APIHandlers) recordExchange(ctx context.Context, sid, input string, result *types.EngineResult) {
	if h.store == nil || result == nil {
		return
	}

	if err := h.store.Append(ctx, &types.TranscriptMessage{
		SessionID: sid,
		Role:      types.RoleUser,
		Content:   input,
	}); err != nil {
		h.logger.Warn("failed to record user message", zap.Error(err))
	}

	msg := &types.TranscriptMessage{
		SessionID:     sid,
		Role:          types.RoleAssistant,
		Content:       result.Content,
		IsInteractive: result.IsPlanPreview || result.IsQuestion,
		PlanID:        result.PlanID,
	}
	if result.Failed() {
		msg.Content = result.Error
	}
	if len(result.Steps) > 0 {
		if data, err := json.Marshal(result.Steps); err == nil {
			msg.PlanData = string(data)
		}
	}
	if err := h.store.Append(ctx, msg); err != nil {
		h.logger.Warn("failed to record assistant message", zap.Error(err))
	}

	if h.hub != nil {
		h.hub.Broadcast(map[string]interface{}{
			"type":       "transcript",
			"session_id": sid,
			"message":    msg,
		})
	}
}

// recordStepResult persists a step execution result to the transcript.
func (h *APIHandlers) recordStepResult(ctx context.Context, sid string, result *types.EngineResult) {
	if h.store == nil || result == nil || result.Failed() {
		return
	}
	msg := &types.TranscriptMessage{
		SessionID: sid,
		Role:      types.RoleAssistant,
		Content:   result.Content,
		PlanID:    result.PlanID,
	}
	if err := h.store.Append(ctx, msg); err != nil {
		h.logger.Warn("failed to record step result", zap.Error(err))
	}
}

// Helper functions

// parseInt parses an integer from a string, returning defaultValue if
// parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing more to do.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
