package types

// ResultType discriminates the shape of an engine result.
type ResultType string

// Result type constants
const (
	// ResultQuestion carries a text answer to an information request
	ResultQuestion ResultType = "question"

	// ResultClarification carries a clarifying question back to the user
	ResultClarification ResultType = "clarification"

	// ResultTask carries generated code for a single-step task
	ResultTask ResultType = "task"

	// ResultPlanPreview carries a stored plan awaiting approval
	ResultPlanPreview ResultType = "plan_preview"

	// ResultMultiStep carries the outcome of executing one plan step
	ResultMultiStep ResultType = "multi_step_task"
)

// StepPreview is the condensed step view embedded in plan previews and
// next-step hints.
type StepPreview struct {
	StepNumber      int        `json:"step_number"`
	Description     string     `json:"description"`
	ActionType      ActionType `json:"action_type,omitempty"`
	ExpectedOutcome string     `json:"expected_outcome"`
}

// EngineResult is the uniform response envelope produced by the orchestration
// engine. Type selects which fields are meaningful; Error, when set, means
// processing failed and the remaining fields are undefined.
type EngineResult struct {
	Type    ResultType `json:"type,omitempty"`
	Content string     `json:"content,omitempty"`
	Error   string     `json:"error,omitempty"`

	// Classification echoes the intent that routed this request.
	Classification TaskType `json:"classification,omitempty"`

	// Task and multi-step results
	Code         string `json:"code,omitempty"`
	IsSingleStep bool   `json:"is_single_step,omitempty"`

	// Clarification results
	IsQuestion bool   `json:"is_question,omitempty"`
	Question   string `json:"question,omitempty"`

	// Plan preview results
	IsPlanPreview bool          `json:"is_plan_preview,omitempty"`
	Steps         []StepPreview `json:"steps,omitempty"`
	PlanID        string        `json:"plan_id,omitempty"`
	PlanSummary   string        `json:"plan_summary,omitempty"`

	// Step execution results
	IsMultiStep     bool         `json:"is_multi_step,omitempty"`
	CurrentStep     int          `json:"current_step,omitempty"`
	TotalSteps      int          `json:"total_steps,omitempty"`
	StepDescription string       `json:"step_description,omitempty"`
	StepOutcome     string       `json:"step_outcome,omitempty"`
	HasNextStep     bool         `json:"has_next_step,omitempty"`
	NextStep        *StepPreview `json:"next_step,omitempty"`
}

// Failed reports whether the result represents a processing failure.
func (r *EngineResult) Failed() bool {
	return r != nil && r.Error != ""
}
