package intent

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

// stubGateway returns a canned completion and counts calls.
type stubGateway struct {
	calls    int
	lastTier string
	content  string
	err      error
}

func (s *stubGateway) RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls++
	s.lastTier = tier
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content, Model: "test-model"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			ClassificationCacheSize: 16,
			ClassificationCacheTTL:  time.Minute,
		},
	}
}

func TestClassifyUsesLLMResult(t *testing.T) {
	stub := &stubGateway{content: `{"classification": "QUESTION", "confidence": 0.85, "reasoning": "asks about scene"}`}
	c := NewClassifier(stub, testConfig(), nil)

	result := c.Classify(context.Background(), "what objects are in the scene?", nil)
	require.NotNil(t, result)
	assert.Equal(t, types.TaskTypeQuestion, result.TaskType)
	assert.Equal(t, 0.85, result.Confidence)
	assert.Equal(t, config.TierClassification, stub.lastTier)
}

func TestClassifyCachesLLMResults(t *testing.T) {
	stub := &stubGateway{content: `{"classification": "TASK", "confidence": 0.9}`}
	c := NewClassifier(stub, testConfig(), nil)

	first := c.Classify(context.Background(), "create a cube", nil)
	second := c.Classify(context.Background(), "create a cube", nil)

	assert.Equal(t, 1, stub.calls, "second identical input should be served from cache")
	assert.Equal(t, first.TaskType, second.TaskType)

	// Different context must be a different cache entry.
	c.Classify(context.Background(), "create a cube", map[string]any{"object_count": 3})
	assert.Equal(t, 2, stub.calls)
}

func TestClassifyFallbackResultsNotCached(t *testing.T) {
	stub := &stubGateway{err: errors.New("connection refused")}
	c := NewClassifier(stub, testConfig(), nil)

	result := c.Classify(context.Background(), "create a red cube", nil)
	require.NotNil(t, result)
	assert.Equal(t, types.TaskTypeTask, result.TaskType)

	c.Classify(context.Background(), "create a red cube", nil)
	assert.Equal(t, 2, stub.calls, "fallback results must not be cached")
	assert.Equal(t, 0, c.CacheLen())
}

func TestClassifyDefaultsMissingFields(t *testing.T) {
	stub := &stubGateway{content: `{"reasoning": "no classification field"}`}
	c := NewClassifier(stub, testConfig(), nil)

	result := c.Classify(context.Background(), "do the thing", nil)
	assert.Equal(t, types.TaskTypeTask, result.TaskType, "missing classification defaults to TASK")
	assert.Equal(t, 0.5, result.Confidence, "missing confidence defaults to 0.5")
}

func TestClassifyInvalidClassificationFallsBack(t *testing.T) {
	stub := &stubGateway{content: `{"classification": "BANANA", "confidence": 0.99}`}
	c := NewClassifier(stub, testConfig(), nil)

	result := c.Classify(context.Background(), "create a cube", nil)
	assert.Equal(t, types.TaskTypeTask, result.TaskType)
	assert.Equal(t, "Contains task keywords or appears to be a command", result.Reasoning)
}

func TestClassifyWithKeywords(t *testing.T) {
	// Force the keyword path with a failing gateway.
	stub := &stubGateway{err: errors.New("offline")}
	c := NewClassifier(stub, testConfig(), nil)

	tests := []struct {
		name           string
		input          string
		wantType       types.TaskType
		wantConfidence float64
	}{
		{
			name:           "multiple question keywords",
			input:          "what objects are in the scene?",
			wantType:       types.TaskTypeQuestion,
			wantConfidence: 0.8,
		},
		{
			name:           "task command",
			input:          "create a red cube",
			wantType:       types.TaskTypeTask,
			wantConfidence: 0.8,
		},
		{
			name:           "vague reference only",
			input:          "bigger please",
			wantType:       types.TaskTypeClarification,
			wantConfidence: 0.7,
		},
		{
			name:           "vague with task keyword stays a task",
			input:          "make it bigger",
			wantType:       types.TaskTypeTask,
			wantConfidence: 0.8,
		},
		{
			name:           "no keywords at all",
			input:          "xyzzy",
			wantType:       types.TaskTypeTask,
			wantConfidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(context.Background(), tt.input, nil)
			require.NotNil(t, result)
			assert.Equal(t, tt.wantType, result.TaskType)
			assert.Equal(t, tt.wantConfidence, result.Confidence)
		})
	}
}

func TestClassifyVagueReasoningAndMissingInfo(t *testing.T) {
	stub := &stubGateway{err: errors.New("offline")}
	c := NewClassifier(stub, testConfig(), nil)

	result := c.Classify(context.Background(), "those ones", nil)
	require.Equal(t, types.TaskTypeClarification, result.TaskType)
	assert.Equal(t, "Contains vague references that need clarification", result.Reasoning)
	assert.Equal(t, []string{"Specific object or parameter references"}, result.MissingInfo)
	assert.Contains(t, result.KeywordsFound, "those")
}
