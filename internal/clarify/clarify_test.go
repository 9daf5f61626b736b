package clarify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/pkg/types"
)

type stubGateway struct {
	calls   int
	content string
	err     error
}

func (s *stubGateway) RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content, Model: "test-model"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			ClarificationCapacity: 8,
			ClarificationTTL:      time.Minute,
		},
	}
}

func testScene() *types.SceneSnapshot {
	return &types.SceneSnapshot{
		Objects: []types.SceneObject{
			{Name: "Cube", Type: "MESH", Selected: true},
			{Name: "Sphere", Type: "MESH"},
		},
	}
}

func TestGenerateWithLLM(t *testing.T) {
	stub := &stubGateway{content: "Which object would you like me to resize: the Cube or the Sphere?"}
	c := NewClarifier(stub, testConfig(), nil)

	resp := c.Generate(context.Background(), "make it bigger", "Vague object reference", testScene())
	require.NotNil(t, resp)
	assert.Equal(t, stub.content, resp.Question)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.Len(t, resp.ClarificationID, 8)
	assert.Equal(t, 1, c.PendingCount())
}

func TestResolveFoldsAnswerIntoInput(t *testing.T) {
	stub := &stubGateway{content: "Which object?"}
	c := NewClarifier(stub, testConfig(), nil)

	resp := c.Generate(context.Background(), "make it bigger", "Vague object reference", nil)
	require.NotEmpty(t, resp.ClarificationID)

	resolved, ok := c.Resolve(resp.ClarificationID, "the cube, twice as big")
	require.True(t, ok)
	assert.Equal(t, "make it bigger\n\nClarification: the cube, twice as big", resolved)

	// Single use: a second resolve of the same id fails.
	_, ok = c.Resolve(resp.ClarificationID, "again")
	assert.False(t, ok)
	assert.Equal(t, 0, c.PendingCount())
}

func TestResolveUnknownID(t *testing.T) {
	c := NewClarifier(&stubGateway{}, testConfig(), nil)
	_, ok := c.Resolve("deadbeef", "whatever")
	assert.False(t, ok)
}

func TestGenerateTemplateFallback(t *testing.T) {
	offline := &stubGateway{err: errors.New("connection refused")}

	tests := []struct {
		name         string
		input        string
		scene        *types.SceneSnapshot
		wantContains string
	}{
		{
			name:         "vague reference with selection",
			input:        "make it bigger",
			scene:        testScene(),
			wantContains: "I see you have 1 object(s) selected",
		},
		{
			name:         "vague reference without selection",
			input:        "delete this",
			scene:        nil,
			wantContains: "I need to know which object you're referring to",
		},
		{
			name:         "size without vague reference",
			input:        "bigger please",
			scene:        nil,
			wantContains: "help with resizing",
		},
		{
			name:         "color request",
			input:        "paint the wall blue",
			scene:        nil,
			wantContains: "help with coloring",
		},
		{
			name:         "move request",
			input:        "move the cube",
			scene:        nil,
			wantContains: "help with moving objects",
		},
		{
			name:         "generic fallback",
			input:        "do something cool",
			scene:        nil,
			wantContains: "I need more information to help you with 'do something cool'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClarifier(offline, testConfig(), nil)
			resp := c.Generate(context.Background(), tt.input, "test", tt.scene)
			require.NotNil(t, resp)
			assert.Contains(t, resp.Question, tt.wantContains)
			assert.Equal(t, 0.6, resp.Confidence)
			assert.Empty(t, resp.ClarificationID, "template questions are not tracked")
			assert.Equal(t, 0, c.PendingCount())
		})
	}
}

func TestDetectAmbiguities(t *testing.T) {
	c := NewClarifier(&stubGateway{}, testConfig(), nil)
	scene := testScene()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "vague plus missing size",
			input: "make it bigger",
			want:  []string{"Vague object reference", "Missing size specification"},
		},
		{
			name:  "size with a number is fine",
			input: "make it 2x bigger",
			want:  []string{"Vague object reference"},
		},
		{
			name:  "color without target",
			input: "paint red",
			want:  []string{"Color specified without target object"},
		},
		{
			name:  "color with scene object named",
			input: "paint the cube red",
			want:  nil,
		},
		{
			name:  "move without destination",
			input: "move the cube",
			want:  []string{"Movement without destination"},
		},
		{
			name:  "move with destination",
			input: "move the cube up",
			want:  nil,
		},
		{
			name:  "unambiguous",
			input: "create a new camera at the origin",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.DetectAmbiguities(tt.input, scene)
			assert.Equal(t, tt.want, got)
		})
	}
}
