package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/engine"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/session"
	"github.com/scenepilot/scenepilot/pkg/types"
)

type stubClient struct {
	reply string
}

func (c *stubClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: c.reply, Model: "stub"}, nil
}

func (c *stubClient) GetModel() string { return "stub" }

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.DataPath = t.TempDir()

	gateway := llm.NewGateway(&stubClient{reply: "The scene has one cube."}, cfg, nil)
	sessions := session.NewManager(gateway, cfg, nil)
	eng, err := sessions.Get(session.DefaultSession)
	require.NoError(t, err)
	return eng
}

func TestRunREPL_QuestionAndQuit(t *testing.T) {
	eng := newTestEngine(t)

	in := strings.NewReader("what objects are in the scene?\n/quit\n")
	var out bytes.Buffer
	runREPL(context.Background(), eng, in, &out)

	assert.Contains(t, out.String(), "The scene has one cube.")
	assert.Contains(t, out.String(), "bye")
}

func TestRunREPL_Commands(t *testing.T) {
	eng := newTestEngine(t)

	in := strings.NewReader("/stats\n/clear\n/plan nope\n/step abc zero\n/bogus\n/quit\n")
	var out bytes.Buffer
	runREPL(context.Background(), eng, in, &out)

	output := out.String()
	assert.Contains(t, output, "turns=0")
	assert.Contains(t, output, "conversation cleared")
	assert.Contains(t, output, "plan not found or expired")
	assert.Contains(t, output, "step number must be a positive integer")
	assert.Contains(t, output, "unknown command /bogus")
}

func TestRunREPL_SceneLoad(t *testing.T) {
	eng := newTestEngine(t)

	snapshot := types.SceneSnapshot{
		Objects: []types.SceneObject{{Name: "Cube", Type: "MESH"}},
		Mode:    "OBJECT",
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	in := strings.NewReader("/scene " + path + "\n/scene missing.json\n/quit\n")
	var out bytes.Buffer
	runREPL(context.Background(), eng, in, &out)

	assert.Contains(t, out.String(), "scene loaded: 1 objects, mode OBJECT")
	assert.Contains(t, out.String(), "error:")
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer

	printResult(&out, &types.EngineResult{Error: "boom"})
	assert.Contains(t, out.String(), "error: boom")

	out.Reset()
	printResult(&out, &types.EngineResult{
		Type:     types.ResultClarification,
		Question: "Which cube?",
	})
	assert.Contains(t, out.String(), "? Which cube?")

	out.Reset()
	printResult(&out, &types.EngineResult{
		Type:        types.ResultPlanPreview,
		PlanID:      "plan_123",
		PlanSummary: "Build a staircase",
		Steps: []types.StepPreview{
			{StepNumber: 1, Description: "Create the first step"},
		},
	})
	assert.Contains(t, out.String(), "plan plan_123: Build a staircase")
	assert.Contains(t, out.String(), "1. Create the first step")
	assert.Contains(t, out.String(), "/run plan_123")

	out.Reset()
	printResult(&out, &types.EngineResult{
		Type:            types.ResultMultiStep,
		CurrentStep:     1,
		TotalSteps:      3,
		StepDescription: "Create the first step",
		Code:            "add_cube()",
		HasNextStep:     true,
		NextStep:        &types.StepPreview{StepNumber: 2, Description: "Duplicate it"},
	})
	assert.Contains(t, out.String(), "step 1/3")
	assert.Contains(t, out.String(), "add_cube()")
	assert.Contains(t, out.String(), "next: 2. Duplicate it")
}
