// Package engine orchestrates the conversational pipeline. Each request is
// resolved against conversation memory, classified, and routed to question
// answering, clarification, single-shot code generation, or multi-step
// planning. The engine is single-flight: one request at a time, enforced by
// an atomic guard that clears on every exit path.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/clarify"
	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/memory"
	"github.com/scenepilot/scenepilot/internal/planner"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// busyMessage is the user-facing content of a busy rejection.
const busyMessage = "Already processing a request. Please wait..."

// ErrBusy reports that the engine rejected a request because another one is
// in flight.
var ErrBusy = errors.New(busyMessage)

// ChatGateway is the slice of the LLM gateway the engine needs.
type ChatGateway interface {
	RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// IntentClassifier routes one input to a pipeline branch.
type IntentClassifier interface {
	Classify(ctx context.Context, input string, contextInfo map[string]any) *types.ClassificationResult
}

// ClarificationGenerator produces and resolves clarifying questions.
type ClarificationGenerator interface {
	Generate(ctx context.Context, input, reason string, scene *types.SceneSnapshot) *clarify.Response
	Resolve(id, reply string) (string, bool)
	PendingCount() int
}

// TaskPlanner decomposes complex tasks and generates per-step code.
type TaskPlanner interface {
	ShouldDecompose(input string) bool
	CreatePlan(ctx context.Context, task, sceneContext string) *types.ExecutionPlan
	ExecuteStep(ctx context.Context, plan *types.ExecutionPlan, stepNumber int, sceneContext string) (*types.StepResult, error)
}

// Deps bundles the engine's collaborators. All fields are required.
type Deps struct {
	Gateway    ChatGateway
	Classifier IntentClassifier
	Clarifier  ClarificationGenerator
	Planner    TaskPlanner
	Memory     *memory.Memory
	Plans      *planner.Store
}

// Engine is the per-session orchestrator.
type Engine struct {
	gateway    ChatGateway
	classifier IntentClassifier
	clarifier  ClarificationGenerator
	planner    TaskPlanner
	memory     *memory.Memory
	plans      *planner.Store

	processing     atomic.Bool
	settings       atomic.Pointer[types.AssistantSettings]
	maxInputLength int

	// pendingClarification holds the id of the last open clarification so the
	// next input can be folded into its original request.
	pendingMu            sync.Mutex
	pendingClarification string

	cbMu     sync.RWMutex
	onResult []func(jobID string, result *types.EngineResult)

	logger *zap.Logger
}

// NewEngine creates an engine from its collaborators. Runtime tunables
// (temperature, token ceiling, multi-step switch) are seeded from cfg and can
// be replaced later through ApplySettings.
func NewEngine(deps Deps, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	switch {
	case deps.Gateway == nil:
		return nil, fmt.Errorf("gateway is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.Clarifier == nil:
		return nil, fmt.Errorf("clarifier is required")
	case deps.Planner == nil:
		return nil, fmt.Errorf("planner is required")
	case deps.Memory == nil:
		return nil, fmt.Errorf("memory is required")
	case deps.Plans == nil:
		return nil, fmt.Errorf("plan store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxInput := cfg.Pipeline.MaxInputLength
	if maxInput <= 0 {
		maxInput = 5000
	}

	e := &Engine{
		gateway:        deps.Gateway,
		classifier:     deps.Classifier,
		clarifier:      deps.Clarifier,
		planner:        deps.Planner,
		memory:         deps.Memory,
		plans:          deps.Plans,
		maxInputLength: maxInput,
		logger:         logger,
	}

	s := types.DefaultAssistantSettings()
	s.Temperature = cfg.Pipeline.Temperature
	s.MaxTokens = cfg.Pipeline.MaxTokens
	s.EnableCaching = cfg.LLM.EnableCaching
	s.EnableMultiStepPlanning = cfg.Pipeline.EnableMultiStep
	s.UseCustomModel = cfg.Models.UseCustomModel
	s.CustomModel = cfg.Models.CustomModel
	e.settings.Store(&s)

	return e, nil
}

// Settings returns a copy of the current runtime settings.
func (e *Engine) Settings() types.AssistantSettings {
	return *e.settings.Load()
}

// ApplySettings replaces the runtime settings after validating them.
func (e *Engine) ApplySettings(s types.AssistantSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.settings.Store(&s)
	return nil
}

// Busy reports whether a request is currently being processed.
func (e *Engine) Busy() bool {
	return e.processing.Load()
}

// guard runs fn under the single-flight guard. A busy engine rejects
// immediately; panics surface as error results so the guard always clears.
func (e *Engine) guard(fn func() *types.EngineResult) (result *types.EngineResult) {
	if !e.processing.CompareAndSwap(false, true) {
		return &types.EngineResult{Error: busyMessage}
	}
	defer e.processing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during processing", zap.Any("panic", r))
			result = &types.EngineResult{Error: fmt.Sprintf("Processing error: %v", r)}
		}
	}()
	return fn()
}

// Process handles one user input synchronously. A busy engine returns an
// immediate busy-error result without touching memory.
func (e *Engine) Process(ctx context.Context, input string, scene *types.SceneSnapshot) *types.EngineResult {
	return e.guard(func() *types.EngineResult {
		return e.process(ctx, input, scene)
	})
}

// process runs the pipeline. Callers must hold the single-flight guard.
func (e *Engine) process(ctx context.Context, input string, scene *types.SceneSnapshot) *types.EngineResult {
	start := time.Now()

	raw := strings.TrimSpace(input)
	if raw == "" {
		return &types.EngineResult{Error: "Invalid input: Input cannot be empty"}
	}
	if utf8.RuneCountInString(raw) > e.maxInputLength {
		return &types.EngineResult{Error: fmt.Sprintf("Invalid input: Input too long. Maximum %d characters allowed.", e.maxInputLength)}
	}

	// An answer to an open clarification is folded back into the request
	// that raised it.
	if id := e.takePendingClarification(); id != "" {
		if folded, ok := e.clarifier.Resolve(id, raw); ok {
			raw = folded
		}
	}

	if scene != nil {
		e.memory.UpdateSceneState(scene)
	}

	resolved := e.memory.ResolvePronouns(raw)
	classification := e.classifier.Classify(ctx, resolved, classifierContext(scene))

	var result *types.EngineResult
	switch classification.TaskType {
	case types.TaskTypeQuestion:
		result = e.answerQuestion(ctx, resolved, scene)
	case types.TaskTypeClarification:
		result = e.requestClarification(ctx, resolved, classification, scene)
	default:
		result = e.handleTask(ctx, resolved, scene)
	}
	result.Classification = classification.TaskType

	// The turn records what the user actually typed, not the resolved form.
	turnType := types.TurnType(result.Type)
	if turnType == "" {
		turnType = types.TurnNormal
	}
	e.memory.AddTurn(raw, result.Content, turnType)

	e.logger.Debug("processed input",
		zap.String("classification", string(classification.TaskType)),
		zap.String("result_type", string(result.Type)),
		zap.Bool("failed", result.Failed()),
		zap.Duration("duration", time.Since(start)))

	return result
}

// answerQuestion sends the question through the general-tier model together
// with the conversation and scene summaries.
func (e *Engine) answerQuestion(ctx context.Context, input string, scene *types.SceneSnapshot) *types.EngineResult {
	content := fmt.Sprintf(`
Context Information:
%s

Scene Information:
%s

User Question: %s

Please provide a helpful answer based on the current scene and conversation context.
`, e.memory.ContextSummary(), SceneSummary(scene), input)

	s := e.Settings()
	resp, err := e.gateway.RequestTier(ctx, config.TierGeneral, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: llm.MainAssistantPrompt},
			{Role: llm.RoleUser, Content: content},
		},
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil {
		return &types.EngineResult{Type: types.ResultQuestion, Error: err.Error()}
	}

	return &types.EngineResult{
		Type:    types.ResultQuestion,
		Content: resp.Content,
	}
}

// requestClarification delegates to the clarification generator and tracks
// the open request so the next input can answer it.
func (e *Engine) requestClarification(ctx context.Context, input string, classification *types.ClassificationResult, scene *types.SceneSnapshot) *types.EngineResult {
	resp := e.clarifier.Generate(ctx, input, classification.Reasoning, scene)
	e.setPendingClarification(resp.ClarificationID)

	return &types.EngineResult{
		Type:       types.ResultClarification,
		Content:    resp.Question,
		IsQuestion: true,
		Question:   resp.Question,
	}
}

// handleTask routes a task to multi-step planning or one-shot code
// generation.
func (e *Engine) handleTask(ctx context.Context, input string, scene *types.SceneSnapshot) *types.EngineResult {
	if e.Settings().EnableMultiStepPlanning && e.planner.ShouldDecompose(input) {
		return e.previewPlan(ctx, input, scene)
	}
	return e.generateTaskCode(ctx, input, scene)
}

// previewPlan creates and stores a plan, returning its preview for approval.
func (e *Engine) previewPlan(ctx context.Context, input string, scene *types.SceneSnapshot) *types.EngineResult {
	plan := e.planner.CreatePlan(ctx, input, sceneJSON(scene))
	id := e.plans.Put(plan)
	e.logger.Debug("created plan", zap.String("plan_id", id), zap.Int("steps", len(plan.Steps)))

	steps := make([]types.StepPreview, len(plan.Steps))
	for i, step := range plan.Steps {
		steps[i] = types.StepPreview{
			StepNumber:      step.StepNumber,
			Description:     step.Description,
			ActionType:      step.ActionType,
			ExpectedOutcome: step.ExpectedOutcome,
		}
	}

	return &types.EngineResult{
		Type:          types.ResultPlanPreview,
		Content:       planner.FormatPlanPreview(plan),
		IsPlanPreview: true,
		Steps:         steps,
		PlanID:        id,
		PlanSummary:   plan.PlanSummary,
	}
}

// generateTaskCode produces code for a single-step task. The result content
// is the extracted code itself.
func (e *Engine) generateTaskCode(ctx context.Context, input string, scene *types.SceneSnapshot) *types.EngineResult {
	system := llm.CodeGeneratorPrompt(input, sceneJSON(scene), "Generate safe, efficient Python code for the current scene")
	content := fmt.Sprintf(`
Conversation Context:
%s

Task: %s

Generate Python code to accomplish this task.
`, e.memory.ContextSummary(), input)

	s := e.Settings()
	resp, err := e.gateway.RequestTier(ctx, config.TierCode, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: content},
		},
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil {
		return &types.EngineResult{Type: types.ResultTask, Error: err.Error()}
	}

	code := llm.ExtractCodeBlock(resp.Content)
	return &types.EngineResult{
		Type:         types.ResultTask,
		Content:      code,
		Code:         code,
		IsSingleStep: true,
	}
}

// ExecutePlanStep executes one step of a stored plan and reports progress
// plus a preview of the following step.
func (e *Engine) ExecutePlanStep(ctx context.Context, planID string, stepNumber int) *types.EngineResult {
	return e.guard(func() *types.EngineResult {
		return e.executePlanStep(ctx, planID, stepNumber)
	})
}

// executePlanStep runs one plan step. Callers must hold the single-flight
// guard.
func (e *Engine) executePlanStep(ctx context.Context, planID string, stepNumber int) *types.EngineResult {
	plan, ok := e.plans.Get(planID)
	if !ok {
		return &types.EngineResult{Error: fmt.Sprintf("Plan not found (ID: %s). Available plans: %v", planID, e.plans.IDs())}
	}

	stepResult, err := e.planner.ExecuteStep(ctx, plan, stepNumber, sceneJSON(e.memory.Scene()))
	if err != nil {
		return &types.EngineResult{Error: err.Error()}
	}
	if !stepResult.Success {
		return &types.EngineResult{Error: fmt.Sprintf("Step %d failed: %s", stepNumber, stepResult.Error)}
	}

	total := len(plan.Steps)
	result := &types.EngineResult{
		Type:            types.ResultMultiStep,
		Content:         stepResult.Code,
		Code:            stepResult.Code,
		IsMultiStep:     true,
		CurrentStep:     stepNumber,
		TotalSteps:      total,
		StepDescription: stepResult.Step.Description,
		StepOutcome:     stepResult.Step.ExpectedOutcome,
		HasNextStep:     stepNumber < total,
		PlanID:          plan.ID,
		PlanSummary:     plan.PlanSummary,
	}
	if result.HasNextStep {
		next := plan.Steps[stepNumber]
		result.NextStep = &types.StepPreview{
			StepNumber:      next.StepNumber,
			Description:     next.Description,
			ExpectedOutcome: next.ExpectedOutcome,
		}
	}
	return result
}

// ExecutePlan executes every step of a plan in order and returns the
// combined code with per-step headers. The first failing step aborts.
func (e *Engine) ExecutePlan(ctx context.Context, planID string) *types.EngineResult {
	return e.guard(func() *types.EngineResult {
		plan, ok := e.plans.Get(planID)
		if !ok {
			return &types.EngineResult{Error: fmt.Sprintf("Plan not found (ID: %s). Available plans: %v", planID, e.plans.IDs())}
		}

		sceneContext := sceneJSON(e.memory.Scene())
		var parts []string
		steps := make([]types.StepPreview, 0, len(plan.Steps))
		for _, step := range plan.Steps {
			stepResult, err := e.planner.ExecuteStep(ctx, plan, step.StepNumber, sceneContext)
			if err != nil {
				return &types.EngineResult{Error: err.Error()}
			}
			if !stepResult.Success {
				return &types.EngineResult{Error: fmt.Sprintf("Step %d failed: %s", step.StepNumber, stepResult.Error)}
			}
			parts = append(parts,
				fmt.Sprintf("# Step %d: %s", step.StepNumber, step.Description),
				stepResult.Code,
				"")
			steps = append(steps, types.StepPreview{
				StepNumber:      step.StepNumber,
				Description:     step.Description,
				ActionType:      step.ActionType,
				ExpectedOutcome: step.ExpectedOutcome,
			})
		}

		combined := strings.Join(parts, "\n")
		return &types.EngineResult{
			Type:        types.ResultMultiStep,
			Content:     combined,
			Code:        combined,
			IsMultiStep: true,
			CurrentStep: len(plan.Steps),
			TotalSteps:  len(plan.Steps),
			HasNextStep: false,
			Steps:       steps,
			PlanID:      plan.ID,
			PlanSummary: plan.PlanSummary,
		}
	})
}

// Plan returns a stored plan by id, if it has not expired.
func (e *Engine) Plan(id string) (*types.ExecutionPlan, bool) {
	return e.plans.Get(id)
}

// ClearConversation resets conversation memory and drops any open
// clarification. Stored plans are left to expire on their own.
func (e *Engine) ClearConversation() {
	e.memory.Clear()
	e.setPendingClarification("")
}

// Stats reports the engine's current conversational state.
type Stats struct {
	Busy                  bool   `json:"busy"`
	Turns                 int    `json:"turns"`
	Entities              int    `json:"entities"`
	Focus                 string `json:"focus,omitempty"`
	StoredPlans           int    `json:"stored_plans"`
	PendingClarifications int    `json:"pending_clarifications"`
}

// Stats returns a snapshot of the engine's state.
func (e *Engine) Stats() Stats {
	return Stats{
		Busy:                  e.processing.Load(),
		Turns:                 e.memory.TurnCount(),
		Entities:              len(e.memory.Entities()),
		Focus:                 e.memory.Focus(),
		StoredPlans:           e.plans.Len(),
		PendingClarifications: e.clarifier.PendingCount(),
	}
}

func (e *Engine) setPendingClarification(id string) {
	e.pendingMu.Lock()
	e.pendingClarification = id
	e.pendingMu.Unlock()
}

func (e *Engine) takePendingClarification() string {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	id := e.pendingClarification
	e.pendingClarification = ""
	return id
}

// classifierContext condenses the scene into the context map the classifier
// hashes and forwards to the model.
func classifierContext(scene *types.SceneSnapshot) map[string]any {
	if scene == nil {
		return nil
	}
	m := make(map[string]any)
	if names := scene.ObjectNames(); len(names) > 0 {
		m["objects"] = names
	}
	if selected := scene.SelectedObjects(); len(selected) > 0 {
		m["selected_objects"] = selected
	}
	if scene.ActiveObject != "" {
		m["active_object"] = scene.ActiveObject
	}
	if scene.Mode != "" {
		m["mode"] = scene.Mode
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// SceneSummary renders a scene as the short human-readable description fed
// to question answering. At most ten objects are listed.
func SceneSummary(scene *types.SceneSnapshot) string {
	if scene == nil || len(scene.Objects) == 0 {
		return "Empty scene"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scene contains %d objects:", len(scene.Objects))
	for i, obj := range scene.Objects {
		if i >= 10 {
			fmt.Fprintf(&b, "\n... and %d more objects", len(scene.Objects)-10)
			break
		}
		fmt.Fprintf(&b, "\n- %s (%s)", obj.Name, obj.Type)
		if obj.Selected {
			b.WriteString(" (selected)")
		}
	}
	if scene.ActiveObject != "" {
		fmt.Fprintf(&b, "\nActive object: %s", scene.ActiveObject)
	}
	return b.String()
}

// sceneJSON renders the snapshot as indented JSON for code generation and
// planning prompts.
func sceneJSON(scene *types.SceneSnapshot) string {
	if scene == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
