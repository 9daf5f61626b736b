package types

import (
	"fmt"
	"time"
)

// ActionType categorizes what a plan step does to the scene.
type ActionType string

// Action type constants
const (
	ActionCreate  ActionType = "create"
	ActionModify  ActionType = "modify"
	ActionDelete  ActionType = "delete"
	ActionAnalyze ActionType = "analyze"
	ActionVerify  ActionType = "verify"
)

// ValidActionTypes is a slice of all valid action types for validation
var ValidActionTypes = []ActionType{
	ActionCreate,
	ActionModify,
	ActionDelete,
	ActionAnalyze,
	ActionVerify,
}

// IsValidActionType checks if the given action type is valid
func IsValidActionType(actionType ActionType) bool {
	for _, validType := range ValidActionTypes {
		if validType == actionType {
			return true
		}
	}
	return false
}

// PlanStep represents a single step in a multi-step execution plan.
type PlanStep struct {
	StepNumber      int        `json:"step_number"`                // 1-based position within the plan
	Description     string     `json:"description"`                // What this step does
	ActionType      ActionType `json:"action_type"`                // create, modify, delete, analyze, or verify
	ExpectedOutcome string     `json:"expected_outcome"`           // Observable result when the step succeeds
	Prerequisites   []string   `json:"prerequisites,omitempty"`    // Conditions that must hold before the step runs
	PotentialIssues []string   `json:"potential_issues,omitempty"` // Known failure modes to watch for
	CodeTemplate    string     `json:"code_template,omitempty"`    // Optional starter code for the step
	EstimatedTime   int        `json:"estimated_time,omitempty"`   // Estimated duration in seconds
}

// ExecutionPlan represents a complete multi-step plan for a complex task.
type ExecutionPlan struct {
	ID                 string     `json:"id,omitempty"`         // Assigned when the plan is stored
	TaskAnalysis       string     `json:"task_analysis"`        // Brief analysis of the task
	EstimatedSteps     int        `json:"estimated_steps"`      // Number of steps in the plan
	Steps              []PlanStep `json:"steps"`                // Ordered steps, numbered 1..N
	PlanSummary        string     `json:"plan_summary"`         // One-line overview
	TotalEstimatedTime int        `json:"total_estimated_time"` // Sum of step estimates in seconds
	ComplexityScore    float64    `json:"complexity_score"`     // 0.0-1.0, derived from step count
	CreatedAt          time.Time  `json:"created_at,omitempty"` // When the plan was created
}

// Validate checks the structural invariants of a plan: at least one step,
// steps numbered exactly 1..N in order, and known action types.
func (p *ExecutionPlan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, step := range p.Steps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("step %d has number %d, expected %d", i, step.StepNumber, i+1)
		}
		if !IsValidActionType(step.ActionType) {
			return fmt.Errorf("step %d has invalid action type %q", step.StepNumber, step.ActionType)
		}
	}
	return nil
}

// Step returns the step with the given 1-based number, or an error when the
// number is out of range.
func (p *ExecutionPlan) Step(n int) (*PlanStep, error) {
	if n < 1 || n > len(p.Steps) {
		return nil, fmt.Errorf("invalid step number: %d", n)
	}
	return &p.Steps[n-1], nil
}

// StepResult carries the outcome of executing a single plan step.
type StepResult struct {
	Success    bool      `json:"success"`          // Whether code generation for the step succeeded
	Code       string    `json:"code,omitempty"`   // Generated code when successful
	Step       *PlanStep `json:"step,omitempty"`   // The step that was executed
	StepNumber int       `json:"step_number"`      // 1-based number of the executed step
	Error      string    `json:"error,omitempty"`  // Failure reason when unsuccessful
}

// PlannerKeywords holds the keyword tables driving the task decomposition
// heuristic. Matching is substring containment on the lowercased input.
type PlannerKeywords struct {
	Complexity []string `json:"complexity"` // Words suggesting a task spans multiple operations
	Actions    []string `json:"actions"`    // Verbs counted to detect multiple distinct actions
}

// DefaultPlannerKeywords returns the built-in keyword tables for the
// decomposition heuristic.
func DefaultPlannerKeywords() PlannerKeywords {
	return PlannerKeywords{
		Complexity: []string{
			"room", "house", "building", "scene", "environment",
			"multiple", "several", "many", "all", "entire",
			"complete", "full", "detailed", "complex",
			"and", "then", "after", "before", "with",
		},
		Actions: []string{
			"create", "make", "add", "place", "set", "apply", "render",
		},
	}
}
