// Package types defines the core data structures for the ScenePilot
// orchestration pipeline. These types represent conversation turns, tracked
// entities, intent classifications, execution plans, engine results, and
// scene snapshots exchanged with the host editor.
package types

import "time"

// TurnType labels a conversation turn with the kind of response it recorded.
type TurnType string

// Turn type constants
const (
	// TurnNormal is the default turn type when no specific mode applies
	TurnNormal TurnType = "normal"

	// TurnQuestion records a turn answered with an explanation
	TurnQuestion TurnType = "question"

	// TurnClarification records a turn answered with a clarifying question
	TurnClarification TurnType = "clarification"

	// TurnTask records a turn answered with generated code
	TurnTask TurnType = "task"

	// TurnPlanPreview records a turn answered with a plan awaiting approval
	TurnPlanPreview TurnType = "plan_preview"

	// TurnMultiStep records a turn answered with a plan step execution
	TurnMultiStep TurnType = "multi_step_task"
)

// ConversationTurn represents a single exchange in the conversation.
type ConversationTurn struct {
	Timestamp         time.Time `json:"timestamp"`                    // When the turn was recorded
	UserInput         string    `json:"user_input"`                   // Original user input (before pronoun resolution)
	AssistantResponse string    `json:"assistant_response"`           // Response content shown to the user
	EntitiesMentioned []string  `json:"entities_mentioned,omitempty"` // Scene entity names found in the input
	TurnType          TurnType  `json:"turn_type"`                    // Kind of response this turn produced
}

// Entity type constants for conversation tracking
const (
	EntityObject   = "object"
	EntityMaterial = "material"
	EntityLight    = "light"
)

// Entity represents a scene element (object, material, light) tracked across
// conversation turns for reference resolution.
type Entity struct {
	Name          string         `json:"name"`                 // Scene name, used as the lookup key
	EntityType    string         `json:"entity_type"`          // object, material, or light
	Properties    map[string]any `json:"properties,omitempty"` // Last known properties from the scene snapshot
	LastMentioned time.Time      `json:"last_mentioned"`       // Most recent mention in user input
	MentionCount  int            `json:"mention_count"`        // Number of turns that mentioned this entity
	Aliases       []string       `json:"aliases,omitempty"`    // Alternative names the user has used
}
