package planner

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
	calls    int
	lastTier string
	lastReq  llm.ChatRequest
	content  string
	err      error
}

func (s *stubGateway) RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls++
	s.lastTier = tier
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content, Model: "test-model"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			PlanningTimeout: 5 * time.Second,
		},
		Pipeline: config.PipelineConfig{
			PlanTTL:      time.Minute,
			PlanCapacity: 4,
		},
	}
}

func TestShouldDecompose(t *testing.T) {
	p := NewPlanner(&stubGateway{}, testConfig(), nil)

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{
			name:  "single simple action",
			input: "make a cube",
			want:  false,
		},
		{
			name:  "no keywords at all",
			input: "rotate the camera",
			want:  false,
		},
		{
			name:  "two complexity keywords",
			input: "build a detailed room",
			want:  true,
		},
		{
			name:  "two action verbs",
			input: "add a light then apply a material",
			want:  true,
		},
		{
			name:  "explicit conjunction",
			input: "create a cube and color it",
			want:  true,
		},
		{
			name:  "long request",
			input: "please rotate the camera slightly to the left so the sculpture is centered nicely in frame for me",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldDecompose(tt.input))
		})
	}
}

func TestCreatePlanFromLLM(t *testing.T) {
	stub := &stubGateway{content: `{
		"task_analysis": "Build a cube and color it",
		"estimated_steps": 3,
		"steps": [
			{"step_number": 1, "description": "Create a cube", "action_type": "create", "expected_outcome": "Cube exists", "estimated_time": 20},
			{"step_number": 2, "description": "Teleport the cube", "action_type": "teleport", "expected_outcome": "Cube elsewhere"},
			{"step_number": 3, "description": "Color it red", "action_type": "modify", "expected_outcome": "Cube is red", "prerequisites": ["Cube must exist"]}
		],
		"plan_summary": "Cube then color"
	}`}
	p := NewPlanner(stub, testConfig(), nil)

	plan := p.CreatePlan(context.Background(), "create a red cube", `{"objects": []}`)
	require.NotNil(t, plan)
	assert.Equal(t, config.TierPlanning, stub.lastTier)
	assert.Equal(t, 0.3, stub.lastReq.Temperature)
	assert.Equal(t, 1500, stub.lastReq.MaxTokens)
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Contains(t, stub.lastReq.Messages[0].Content, `{"objects": []}`)
	assert.Equal(t, "Create a step-by-step plan for: create a red cube", stub.lastReq.Messages[1].Content)

	// The unknown action type is dropped and the survivors renumbered.
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 1, plan.Steps[0].StepNumber)
	assert.Equal(t, "Create a cube", plan.Steps[0].Description)
	assert.Equal(t, 2, plan.Steps[1].StepNumber)
	assert.Equal(t, "Color it red", plan.Steps[1].Description)
	require.NoError(t, plan.Validate())

	assert.Equal(t, "Build a cube and color it", plan.TaskAnalysis)
	assert.Equal(t, "Cube then color", plan.PlanSummary)
	assert.Equal(t, 2, plan.EstimatedSteps)
	assert.Equal(t, 30, plan.Steps[1].EstimatedTime, "missing estimate defaults to 30s")
	assert.Equal(t, 50, plan.TotalEstimatedTime)
	assert.InDelta(t, 0.2, plan.ComplexityScore, 1e-9)
	assert.False(t, plan.CreatedAt.IsZero())
}

func TestCreatePlanDefaultsMissingFields(t *testing.T) {
	stub := &stubGateway{content: `{"steps": [{"description": "Do it", "action_type": "create", "expected_outcome": "Done"}]}`}
	p := NewPlanner(stub, testConfig(), nil)

	plan := p.CreatePlan(context.Background(), "do the thing", "")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "Analysis for: do the thing", plan.TaskAnalysis)
	assert.Equal(t, "Plan for: do the thing", plan.PlanSummary)
	assert.Equal(t, 30, plan.TotalEstimatedTime)
}

func TestCreatePlanFallbackOnError(t *testing.T) {
	stub := &stubGateway{err: errors.New("connection refused")}
	p := NewPlanner(stub, testConfig(), nil)

	plan := p.CreatePlan(context.Background(), "Create a red cube with glowing material and soft lighting", "")
	require.NotNil(t, plan)
	require.NoError(t, plan.Validate())

	// The task matches the create, material, and lighting templates in order.
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "Create the requested object/structure", plan.Steps[0].Description)
	assert.Equal(t, types.ActionCreate, plan.Steps[0].ActionType)
	assert.Equal(t, "Apply materials and colors", plan.Steps[1].Description)
	assert.Equal(t, types.ActionModify, plan.Steps[1].ActionType)
	assert.Equal(t, []string{"Objects must exist"}, plan.Steps[1].Prerequisites)
	assert.Equal(t, "Set up lighting", plan.Steps[2].Description)

	assert.Equal(t, "Simple breakdown of: Create a red cube with glowing material and soft lighting", plan.TaskAnalysis)
	assert.Equal(t, "Fallback plan for: Create a red cube with glowing material and soft lighting", plan.PlanSummary)
	assert.Equal(t, 180, plan.TotalEstimatedTime)
	assert.Equal(t, 0.5, plan.ComplexityScore)
}

func TestCreatePlanFallbackCatchAll(t *testing.T) {
	stub := &stubGateway{err: errors.New("connection refused")}
	p := NewPlanner(stub, testConfig(), nil)

	plan := p.CreatePlan(context.Background(), "reticulate splines", "")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "Execute task: reticulate splines", plan.Steps[0].Description)
	assert.Equal(t, types.ActionCreate, plan.Steps[0].ActionType)
	assert.Equal(t, "Task completed", plan.Steps[0].ExpectedOutcome)
	assert.Equal(t, 60, plan.TotalEstimatedTime)
}

func TestCreatePlanFallbackOnUnparseableResponse(t *testing.T) {
	stub := &stubGateway{content: "I cannot produce a plan for that."}
	p := NewPlanner(stub, testConfig(), nil)

	plan := p.CreatePlan(context.Background(), "make a chair", "")
	require.NotNil(t, plan)
	assert.Equal(t, "Fallback plan for: make a chair", plan.PlanSummary)
}

func twoStepPlan() *types.ExecutionPlan {
	return &types.ExecutionPlan{
		TaskAnalysis: "Two operations",
		Steps: []types.PlanStep{
			{StepNumber: 1, Description: "Create a cube", ActionType: types.ActionCreate, ExpectedOutcome: "Cube exists"},
			{StepNumber: 2, Description: "Color it red", ActionType: types.ActionModify, ExpectedOutcome: "Cube is red", Prerequisites: []string{"Cube must exist"}},
		},
		PlanSummary: "Cube then color",
	}
}

func TestExecuteStep(t *testing.T) {
	stub := &stubGateway{content: "```python\nbpy.ops.mesh.primitive_cube_add()\n```"}
	p := NewPlanner(stub, testConfig(), nil)

	result, err := p.ExecuteStep(context.Background(), twoStepPlan(), 1, "Empty scene")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "bpy.ops.mesh.primitive_cube_add()", result.Code)
	assert.Equal(t, 1, result.StepNumber)
	assert.Equal(t, "Create a cube", result.Step.Description)

	assert.Equal(t, config.TierCode, stub.lastTier)
	assert.Equal(t, 0.3, stub.lastReq.Temperature)
	assert.Equal(t, 800, stub.lastReq.MaxTokens)
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, "Generate code for step 1: Create a cube", stub.lastReq.Messages[1].Content)
	assert.Contains(t, stub.lastReq.Messages[0].Content, "Expected outcome: Cube exists")
}

func TestExecuteStepInvalidNumber(t *testing.T) {
	p := NewPlanner(&stubGateway{}, testConfig(), nil)
	plan := twoStepPlan()

	for _, n := range []int{0, 3, -1} {
		result, err := p.ExecuteStep(context.Background(), plan, n, "")
		assert.Error(t, err)
		assert.Nil(t, result)
	}
}

func TestExecuteStepGenerationFailure(t *testing.T) {
	stub := &stubGateway{err: errors.New("rate limit exceeded")}
	p := NewPlanner(stub, testConfig(), nil)

	result, err := p.ExecuteStep(context.Background(), twoStepPlan(), 2, "")
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "rate limit exceeded")
	assert.Equal(t, 2, result.StepNumber)
	assert.Empty(t, result.Code)
}

func TestFormatPlanPreview(t *testing.T) {
	plan := twoStepPlan()
	plan.Steps[1].PotentialIssues = []string{"Material nodes might be complex"}
	plan.TotalEstimatedTime = 120
	plan.ComplexityScore = 0.5

	want := "📋 Plan Summary: Cube then color\n" +
		"\n" +
		"🔍 Analysis: Two operations\n" +
		"\n" +
		"⏱️ Estimated Time: 2 minutes\n" +
		"📊 Complexity: ●●○○○\n" +
		"\n" +
		"Steps:\n" +
		"1. Create a cube\n" +
		"   - Expected: Cube exists\n" +
		"\n" +
		"2. Color it red\n" +
		"   - Expected: Cube is red\n" +
		"   - Requires: Cube must exist\n" +
		"   - Watch for: Material nodes might be complex\n" +
		"\n" +
		"Please review and approve this plan to proceed."

	assert.Equal(t, want, FormatPlanPreview(plan))
}

func TestStorePutAssignsID(t *testing.T) {
	store := NewStore(testConfig())
	plan := twoStepPlan()

	id := store.Put(plan)
	assert.True(t, len(id) == len("plan_")+8, "id %q should be plan_ plus 8 hex chars", id)
	assert.Equal(t, id, plan.ID)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Same(t, plan, got)
	assert.Equal(t, 1, store.Len())
	assert.Contains(t, store.IDs(), id)
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(testConfig())
	id := store.Put(twoStepPlan())

	store.Remove(id)
	_, ok := store.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStoreEvictsOldestAtCapacity(t *testing.T) {
	store := NewStore(testConfig()) // capacity 4

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, store.Put(twoStepPlan()))
	}

	assert.Equal(t, 4, store.Len())
	_, ok := store.Get(ids[0])
	assert.False(t, ok, "oldest plan should have been evicted")
	_, ok = store.Get(ids[4])
	assert.True(t, ok)
}
