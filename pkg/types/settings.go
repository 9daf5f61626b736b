package types

import "fmt"

// AssistantSettings holds the runtime tunables a host UI can adjust without
// restarting the sidecar. Persisted values are merged over defaults, so a
// partial document only overrides the fields it names.
type AssistantSettings struct {
	Temperature             float64 `json:"temperature"`                // Sampling temperature for general and code requests
	MaxTokens               int     `json:"max_tokens"`                 // Completion ceiling for general and code requests
	EnableCaching           bool    `json:"enable_caching"`             // Whether the gateway response cache is active
	EnableMultiStepPlanning bool    `json:"enable_multi_step_planning"` // Whether complex tasks are decomposed into plans
	UseCustomModel          bool    `json:"use_custom_model"`           // Whether CustomModel overrides per-tier routing
	CustomModel             string  `json:"custom_model,omitempty"`     // Model used for every tier when enabled
}

// DefaultAssistantSettings returns the built-in runtime defaults.
func DefaultAssistantSettings() AssistantSettings {
	return AssistantSettings{
		Temperature:             0.7,
		MaxTokens:               1500,
		EnableCaching:           true,
		EnableMultiStepPlanning: true,
	}
}

// Validate checks that the settings are within acceptable ranges.
func (s *AssistantSettings) Validate() error {
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", s.Temperature)
	}
	if s.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}
	if s.UseCustomModel && s.CustomModel == "" {
		return fmt.Errorf("use_custom_model requires custom_model to be set")
	}
	return nil
}
