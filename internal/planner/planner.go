// Package planner decomposes complex tasks into multi-step execution plans
// and generates code for individual steps. Plan creation prefers the LLM; a
// keyword-template fallback produces a workable plan when the provider is
// unavailable.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/pkg/types"
)

const (
	defaultStepTime  = 30 // seconds assumed for a step the LLM left unestimated
	fallbackStepTime = 60 // seconds assumed for a template fallback step
)

// ChatGateway is the slice of the LLM gateway the planner needs.
type ChatGateway interface {
	RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Planner creates execution plans and generates per-step code.
type Planner struct {
	gateway         ChatGateway
	keywords        types.PlannerKeywords
	planningTimeout time.Duration
	logger          *zap.Logger
}

// NewPlanner creates a planner using the planning timeout from cfg.
func NewPlanner(gateway ChatGateway, cfg *config.Config, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.LLM.PlanningTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Planner{
		gateway:         gateway,
		keywords:        types.DefaultPlannerKeywords(),
		planningTimeout: timeout,
		logger:          logger,
	}
}

// ShouldDecompose reports whether a task is complex enough to plan before
// executing. It counts complexity and action keywords by substring containment
// on the lowercased input; two of either, fifteen words, or an explicit "and"
// all tip the decision.
func (p *Planner) ShouldDecompose(input string) bool {
	inputLower := strings.ToLower(input)

	complexityCount := 0
	for _, kw := range p.keywords.Complexity {
		if strings.Contains(inputLower, kw) {
			complexityCount++
		}
	}

	actionCount := 0
	for _, kw := range p.keywords.Actions {
		if strings.Contains(inputLower, kw) {
			actionCount++
		}
	}

	wordCount := len(strings.Fields(input))

	return complexityCount >= 2 ||
		actionCount >= 2 ||
		wordCount >= 15 ||
		strings.Contains(inputLower, " and ")
}

// CreatePlan produces an execution plan for a task. A plan is always returned:
// when the LLM fails or returns nothing usable, a template fallback plan is
// built from the task's keywords instead.
func (p *Planner) CreatePlan(ctx context.Context, task, sceneContext string) *types.ExecutionPlan {
	plan, err := p.createWithLLM(ctx, task, sceneContext)
	if err != nil {
		p.logger.Warn("llm plan creation failed, using fallback plan",
			zap.String("task", task),
			zap.Error(err))
		return p.fallbackPlan(task)
	}
	return plan
}

func (p *Planner) createWithLLM(ctx context.Context, task, sceneContext string) (*types.ExecutionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, p.planningTimeout)
	defer cancel()

	resp, err := p.gateway.RequestTier(ctx, config.TierPlanning, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: llm.PlannerPrompt(task, sceneContext)},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Create a step-by-step plan for: %s", task)},
		},
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, err
	}

	return p.parsePlan(task, resp.Content)
}

// parsePlan decodes the LLM's JSON plan. Steps with unknown action types are
// dropped and the survivors renumbered so the plan stays 1..N. Missing
// analysis, summary, and time estimates get defaults derived from the task.
func (p *Planner) parsePlan(task, response string) (*types.ExecutionPlan, error) {
	var raw struct {
		TaskAnalysis   string           `json:"task_analysis"`
		EstimatedSteps int              `json:"estimated_steps"`
		Steps          []types.PlanStep `json:"steps"`
		PlanSummary    string           `json:"plan_summary"`
	}
	if err := llm.DecodeJSON(response, &raw); err != nil {
		return nil, err
	}

	steps := make([]types.PlanStep, 0, len(raw.Steps))
	for _, step := range raw.Steps {
		if !types.IsValidActionType(step.ActionType) {
			p.logger.Debug("dropping plan step with unknown action type",
				zap.String("action_type", string(step.ActionType)),
				zap.String("description", step.Description))
			continue
		}
		if step.EstimatedTime <= 0 {
			step.EstimatedTime = defaultStepTime
		}
		step.StepNumber = len(steps) + 1
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan contains no usable steps")
	}

	analysis := strings.TrimSpace(raw.TaskAnalysis)
	if analysis == "" {
		analysis = fmt.Sprintf("Analysis for: %s", task)
	}
	summary := strings.TrimSpace(raw.PlanSummary)
	if summary == "" {
		summary = fmt.Sprintf("Plan for: %s", task)
	}

	total := 0
	for _, step := range steps {
		total += step.EstimatedTime
	}

	return &types.ExecutionPlan{
		TaskAnalysis:       analysis,
		EstimatedSteps:     len(steps),
		Steps:              steps,
		PlanSummary:        summary,
		TotalEstimatedTime: total,
		ComplexityScore:    complexityScore(len(steps)),
		CreatedAt:          time.Now(),
	}, nil
}

// fallbackPlan builds a plan from keyword templates when the LLM is
// unavailable. Each matching concern contributes one step; a task matching
// nothing becomes a single catch-all step.
func (p *Planner) fallbackPlan(task string) *types.ExecutionPlan {
	taskLower := strings.ToLower(task)

	var steps []types.PlanStep
	addStep := func(step types.PlanStep) {
		step.StepNumber = len(steps) + 1
		step.EstimatedTime = fallbackStepTime
		steps = append(steps, step)
	}

	if strings.Contains(taskLower, "create") || strings.Contains(taskLower, "make") {
		addStep(types.PlanStep{
			Description:     "Create the requested object/structure",
			ActionType:      types.ActionCreate,
			ExpectedOutcome: "Object created in scene",
			PotentialIssues: []string{"Object might overlap with existing objects"},
		})
	}
	if strings.Contains(taskLower, "material") || strings.Contains(taskLower, "color") {
		addStep(types.PlanStep{
			Description:     "Apply materials and colors",
			ActionType:      types.ActionModify,
			ExpectedOutcome: "Objects have proper materials",
			Prerequisites:   []string{"Objects must exist"},
			PotentialIssues: []string{"Material nodes might be complex"},
		})
	}
	if strings.Contains(taskLower, "light") {
		addStep(types.PlanStep{
			Description:     "Set up lighting",
			ActionType:      types.ActionCreate,
			ExpectedOutcome: "Scene is properly lit",
			Prerequisites:   []string{"Objects must exist"},
			PotentialIssues: []string{"Lighting might be too bright or too dark"},
		})
	}
	if len(steps) == 0 {
		addStep(types.PlanStep{
			Description:     fmt.Sprintf("Execute task: %s", task),
			ActionType:      types.ActionCreate,
			ExpectedOutcome: "Task completed",
			PotentialIssues: []string{"Task might be complex"},
		})
	}

	return &types.ExecutionPlan{
		TaskAnalysis:       fmt.Sprintf("Simple breakdown of: %s", task),
		EstimatedSteps:     len(steps),
		Steps:              steps,
		PlanSummary:        fmt.Sprintf("Fallback plan for: %s", task),
		TotalEstimatedTime: len(steps) * fallbackStepTime,
		ComplexityScore:    0.5,
		CreatedAt:          time.Now(),
	}
}

// ExecuteStep generates code for one plan step. Generation failures are
// recorded in the result; the error return is reserved for step numbers
// outside the plan.
func (p *Planner) ExecuteStep(ctx context.Context, plan *types.ExecutionPlan, stepNumber int, sceneContext string) (*types.StepResult, error) {
	step, err := plan.Step(stepNumber)
	if err != nil {
		return nil, err
	}

	code, err := p.generateStepCode(ctx, step, sceneContext)
	if err != nil {
		p.logger.Warn("step code generation failed",
			zap.Int("step", stepNumber),
			zap.Error(err))
		return &types.StepResult{
			Success:    false,
			Step:       step,
			StepNumber: stepNumber,
			Error:      err.Error(),
		}, nil
	}

	return &types.StepResult{
		Success:    true,
		Code:       code,
		Step:       step,
		StepNumber: stepNumber,
	}, nil
}

func (p *Planner) generateStepCode(ctx context.Context, step *types.PlanStep, sceneContext string) (string, error) {
	var requirements strings.Builder
	fmt.Fprintf(&requirements, "Expected outcome: %s", step.ExpectedOutcome)
	if len(step.Prerequisites) > 0 {
		fmt.Fprintf(&requirements, "\nPrerequisites: %s", strings.Join(step.Prerequisites, "; "))
	}
	if step.CodeTemplate != "" {
		fmt.Fprintf(&requirements, "\nStarter template:\n%s", step.CodeTemplate)
	}

	resp, err := p.gateway.RequestTier(ctx, config.TierCode, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: llm.CodeGeneratorPrompt(step.Description, sceneContext, requirements.String())},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Generate code for step %d: %s", step.StepNumber, step.Description)},
		},
		Temperature: 0.3,
		MaxTokens:   800,
	})
	if err != nil {
		return "", err
	}

	code := llm.ExtractCodeBlock(resp.Content)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("empty code generation response")
	}
	return code, nil
}

// FormatPlanPreview renders a plan as the approval text shown to the user.
func FormatPlanPreview(plan *types.ExecutionPlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 Plan Summary: %s\n\n", plan.PlanSummary)
	fmt.Fprintf(&b, "🔍 Analysis: %s\n\n", plan.TaskAnalysis)
	fmt.Fprintf(&b, "⏱️ Estimated Time: %d minutes\n", plan.TotalEstimatedTime/60)
	fmt.Fprintf(&b, "📊 Complexity: %s\n\n", complexityBar(plan.ComplexityScore))

	b.WriteString("Steps:\n")
	for _, step := range plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", step.StepNumber, step.Description)
		fmt.Fprintf(&b, "   - Expected: %s\n", step.ExpectedOutcome)
		if len(step.Prerequisites) > 0 {
			fmt.Fprintf(&b, "   - Requires: %s\n", strings.Join(step.Prerequisites, ", "))
		}
		if len(step.PotentialIssues) > 0 {
			fmt.Fprintf(&b, "   - Watch for: %s\n", strings.Join(step.PotentialIssues, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Please review and approve this plan to proceed.")
	return b.String()
}

// complexityScore maps a step count onto 0.0-1.0, saturating at ten steps.
func complexityScore(stepCount int) float64 {
	score := float64(stepCount) / 10
	if score > 1.0 {
		return 1.0
	}
	return score
}

// complexityBar renders a score as a five-dot gauge.
func complexityBar(score float64) string {
	filled := int(score * 5)
	if filled < 0 {
		filled = 0
	}
	if filled > 5 {
		filled = 5
	}
	return strings.Repeat("●", filled) + strings.Repeat("○", 5-filled)
}
