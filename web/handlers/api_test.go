package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/scene"
	"github.com/scenepilot/scenepilot/internal/services"
	"github.com/scenepilot/scenepilot/internal/session"
	"github.com/scenepilot/scenepilot/internal/transcript"
	transqlite "github.com/scenepilot/scenepilot/internal/transcript/sqlite"
	"github.com/scenepilot/scenepilot/pkg/types"
	"github.com/scenepilot/scenepilot/web/handlers"
)

type scriptedClient struct {
	reply string
}

func (c scriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	reply := c.reply
	if reply == "" {
		reply = "The scene contains a cube."
	}
	return &llm.ChatResponse{Content: reply, Model: "test-model", FinishReason: "stop"}, nil
}

func (c scriptedClient) GetModel() string { return "test-model" }

type fixture struct {
	mux   *http.ServeMux
	store transcript.Store
	watch *scene.Watcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	store, err := transqlite.NewStore(filepath.Join(t.TempDir(), "scenepilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := llm.NewGateway(scriptedClient{}, cfg, nil)
	sessions := session.NewManager(gw, cfg, nil)
	watch := scene.NewWatcher(t.TempDir(), nil, nil)

	api := handlers.NewAPIHandlers(handlers.Deps{
		Sessions: sessions,
		Gateway:  gw,
		Store:    store,
		Settings: services.NewSettingsService(store, nil),
		Scenes:   watch,
		Config:   cfg,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", api.Chat)
	mux.HandleFunc("GET /api/plans/{id}", api.GetPlan)
	mux.HandleFunc("POST /api/plans/{id}/steps/{number}", api.ExecuteStep)
	mux.HandleFunc("POST /api/plans/{id}/execute", api.ExecutePlan)
	mux.HandleFunc("POST /api/conversation/clear", api.ClearConversation)
	mux.HandleFunc("GET /api/scene", api.GetScene)
	mux.HandleFunc("PUT /api/scene", api.PutScene)
	mux.HandleFunc("GET /api/transcript", api.ListTranscript)
	mux.HandleFunc("DELETE /api/transcript", api.ClearTranscript)
	mux.HandleFunc("GET /api/transcript/export", api.ExportTranscript)
	mux.HandleFunc("POST /api/transcript/import", api.ImportTranscript)
	mux.HandleFunc("GET /api/settings", api.GetSettings)
	mux.HandleFunc("PUT /api/settings", api.PutSettings)
	mux.HandleFunc("GET /api/llm/stats", api.GatewayStats)
	mux.HandleFunc("GET /api/llm/config", api.GatewayConfig)
	mux.HandleFunc("GET /api/stats", api.Stats)

	return &fixture{mux: mux, store: store, watch: watch}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsResult(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Input: "what is in the scene?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.EngineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, types.ResultQuestion, result.Type)
	assert.NotEmpty(t, result.Content)
	assert.Empty(t, result.Error)
}

func TestChatRejectsEmptyInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRecordsTranscript(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Input: "what is in the scene?"})
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := f.store.Count(context.Background(), session.DefaultSession)
	require.NoError(t, err)
	assert.Equal(t, 2, count) // user + assistant
}

func TestAsyncChatRecordsTranscript(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Input: "what is in the scene?", Async: true})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted handlers.AsyncAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted.JobID)

	// The exchange is written when the job completes, not when the 202 is
	// sent.
	require.Eventually(t, func() bool {
		count, err := f.store.Count(context.Background(), session.DefaultSession)
		return err == nil && count == 2
	}, 2*time.Second, 10*time.Millisecond, "async chat must reach the transcript")

	result, err := f.store.List(context.Background(), transcript.ListOptions{SessionID: session.DefaultSession})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, types.RoleUser, result.Items[0].Role)
	assert.Equal(t, "what is in the scene?", result.Items[0].Content)
	assert.Equal(t, types.RoleAssistant, result.Items[1].Role)
}

func TestGetPlanNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/plans/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteStepInvalidNumber(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/plans/some-plan/steps/zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/plans/some-plan/steps/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsyncStepRecordsTranscript(t *testing.T) {
	f := newFixture(t)

	// A compound task falls back to a template plan and returns a preview.
	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{
		Input: "create a red cube and add a light above it",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var preview types.EngineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	require.True(t, preview.IsPlanPreview, "expected a plan preview, got %+v", preview)
	require.NotEmpty(t, preview.PlanID)

	before, err := f.store.Count(context.Background(), session.DefaultSession)
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/plans/"+preview.PlanID+"/steps/1", handlers.ExecuteStepRequest{Async: true})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		count, err := f.store.Count(context.Background(), session.DefaultSession)
		return err == nil && count == before+1
	}, 2*time.Second, 10*time.Millisecond, "async step must reach the transcript")
}

func TestScenePutThenGet(t *testing.T) {
	f := newFixture(t)

	snapshot := types.SceneSnapshot{
		Objects:      []types.SceneObject{{Name: "Cube", Type: "MESH"}},
		ActiveObject: "Cube",
	}
	rec := f.do(t, http.MethodPut, "/api/scene", snapshot)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/scene", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.SceneSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Cube", got.ActiveObject)
}

func TestSceneGetWithoutSnapshot(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/scene", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTranscriptListAndClear(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Input: "what is in the scene?"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page transcript.PaginatedResult[types.TranscriptMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 2)

	rec = f.do(t, http.MethodDelete, "/api/transcript", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	count, err := f.store.Count(context.Background(), session.DefaultSession)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTranscriptExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Input: "what is in the scene?"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/transcript/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var export types.TranscriptExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	require.Len(t, export.Messages, 2)

	rec = f.do(t, http.MethodDelete, "/api/transcript", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/transcript/import", export)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := f.store.Count(context.Background(), session.DefaultSession)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTranscriptImportRejectsUnknownVersion(t *testing.T) {
	f := newFixture(t)

	export := types.TranscriptExport{Version: "99.0"}
	rec := f.do(t, http.MethodPost, "/api/transcript/import", export)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings types.AssistantSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))

	settings.Temperature = 0.3
	rec = f.do(t, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.InDelta(t, 0.3, settings.Temperature, 1e-9)
}

func TestSettingsRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	settings := types.DefaultAssistantSettings()
	settings.Temperature = 5.0
	rec := f.do(t, http.MethodPut, "/api/settings", settings)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Input: "what is in the scene?"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats handlers.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, session.DefaultSession, stats.Session)
	assert.Greater(t, stats.Engine.Turns, 0)
	assert.Equal(t, 2, stats.Messages)
}

func TestGatewayStatsAndConfig(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/llm/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats llm.GatewayStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	rec = f.do(t, http.MethodGet, "/api/llm/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var gwCfg handlers.GatewayConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gwCfg))
	assert.NotEmpty(t, gwCfg.Provider)
}

func TestChatUsesSessionHeader(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(handlers.ChatRequest{Input: "what is in the scene?"}))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", &buf)
	req.Header.Set("X-Session-ID", "window-2")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := f.store.Count(context.Background(), "window-2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = f.store.Count(context.Background(), session.DefaultSession)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
