package types

// TaskType represents the classified intent of a user input.
type TaskType string

// Task type constants
const (
	// TaskTypeQuestion indicates the user wants information or an explanation
	TaskTypeQuestion TaskType = "QUESTION"

	// TaskTypeTask indicates the user wants an action performed
	TaskTypeTask TaskType = "TASK"

	// TaskTypeClarification indicates the input is too ambiguous to act on
	TaskTypeClarification TaskType = "CLARIFICATION_NEEDED"
)

// ValidTaskTypes is a slice of all valid task types for validation
var ValidTaskTypes = []TaskType{
	TaskTypeQuestion,
	TaskTypeTask,
	TaskTypeClarification,
}

// IsValidTaskType checks if the given task type is valid
func IsValidTaskType(taskType TaskType) bool {
	for _, validType := range ValidTaskTypes {
		if validType == taskType {
			return true
		}
	}
	return false
}

// ClassificationResult is the outcome of intent classification. The JSON tags
// mirror the wire format the classifier model is asked to produce.
type ClassificationResult struct {
	TaskType      TaskType `json:"classification"`           // QUESTION, TASK, or CLARIFICATION_NEEDED
	Confidence    float64  `json:"confidence"`               // 0.0-1.0
	Reasoning     string   `json:"reasoning"`                // Brief explanation of the classification
	KeywordsFound []string `json:"keywords_found,omitempty"` // Keywords the model matched on
	MissingInfo   []string `json:"missing_info,omitempty"`   // Information needed when clarification is required
}

// ClassifierKeywords holds the keyword tables driving the deterministic
// fallback classifier. Matching is substring containment on the lowercased
// input; scores are counts of matching entries per table.
type ClassifierKeywords struct {
	Question []string `json:"question"` // Words suggesting an information request
	Task     []string `json:"task"`     // Verbs suggesting an action request
	Vague    []string `json:"vague"`    // References that need clarification without other signals
}

// DefaultClassifierKeywords returns the built-in keyword tables for fallback
// classification.
func DefaultClassifierKeywords() ClassifierKeywords {
	return ClassifierKeywords{
		Question: []string{
			"what", "how", "why", "which", "where", "when", "who",
			"explain", "tell me", "show me", "describe", "list",
			"is", "are", "can", "could", "would", "should", "do",
		},
		Task: []string{
			"create", "make", "add", "delete", "remove", "move", "scale",
			"rotate", "generate", "build", "place", "set", "change",
			"modify", "update", "apply", "render", "export", "import",
		},
		Vague: []string{
			"this", "that", "it", "them", "these", "those",
			"bigger", "smaller", "better", "different",
		},
	}
}
