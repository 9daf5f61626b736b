package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/pkg/types"
)

type echoClient struct{}

func (echoClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "ok", Model: "test-model", FinishReason: "stop"}, nil
}

func (echoClient) GetModel() string { return "test-model" }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	gw := llm.NewGateway(echoClient{}, cfg, nil)
	return NewManager(gw, cfg, nil)
}

func TestGetCreatesOnDemand(t *testing.T) {
	m := newTestManager(t)

	eng, err := m.Get("editor-1")
	require.NoError(t, err)
	require.NotNil(t, eng)

	again, err := m.Get("editor-1")
	require.NoError(t, err)
	assert.Same(t, eng, again)

	assert.Equal(t, []string{"editor-1"}, m.Sessions())
}

func TestEmptyIDSelectsDefault(t *testing.T) {
	m := newTestManager(t)

	eng, err := m.Get("")
	require.NoError(t, err)

	byName, err := m.Get(DefaultSession)
	require.NoError(t, err)
	assert.Same(t, eng, byName)
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Get("a")
	require.NoError(t, err)
	b, err := m.Get("b")
	require.NoError(t, err)
	require.NotSame(t, a, b)

	result := a.Process(context.Background(), "what objects are in the scene?", nil)
	require.False(t, result.Failed())

	assert.Greater(t, a.Stats().Turns, 0)
	assert.Equal(t, 0, b.Stats().Turns)
}

func TestEvictsIdleAtCap(t *testing.T) {
	m := newTestManager(t)
	m.SetMaxSessions(2)

	_, err := m.Get("first")
	require.NoError(t, err)
	_, err = m.Get("second")
	require.NoError(t, err)

	// Touch "second" so "first" becomes the LRU candidate.
	_, err = m.Get("second")
	require.NoError(t, err)

	_, err = m.Get("third")
	require.NoError(t, err)

	ids := m.Sessions()
	assert.Len(t, ids, 2)
	assert.NotContains(t, ids, "first")
	assert.Contains(t, ids, "third")
}

func TestRemove(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get("doomed")
	require.NoError(t, err)
	m.Remove("doomed")
	assert.Empty(t, m.Sessions())
}

func TestApplySettingsToAll(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Get("a")
	require.NoError(t, err)
	b, err := m.Get("b")
	require.NoError(t, err)

	s := types.DefaultAssistantSettings()
	s.Temperature = 0.2
	require.NoError(t, m.ApplySettings(s))

	assert.InDelta(t, 0.2, a.Settings().Temperature, 1e-9)
	assert.InDelta(t, 0.2, b.Settings().Temperature, 1e-9)
}

func TestApplySettingsRejectsInvalid(t *testing.T) {
	m := newTestManager(t)
	s := types.DefaultAssistantSettings()
	s.Temperature = 9.0
	assert.Error(t, m.ApplySettings(s))
}
