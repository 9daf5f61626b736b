package handlers

import (
	"github.com/scenepilot/scenepilot/internal/config"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Input string `json:"input"`
	Async bool   `json:"async,omitempty"` // Queue the request and deliver the result over WebSocket
}

// AsyncAccepted is the response for an accepted async chat request. The
// result arrives on the WebSocket hub tagged with the job id.
type AsyncAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"` // always "processing"
}

// ExecuteStepRequest is the optional request body for step execution.
// An absent body executes the step named in the URL synchronously.
type ExecuteStepRequest struct {
	Async bool `json:"async,omitempty"`
}

// GatewayConfigResponse describes the model gateway with masked API keys.
type GatewayConfigResponse struct {
	Provider        string `json:"provider"`
	OllamaURL       string `json:"ollama_url,omitempty"`
	OpenAIAPIKey    string `json:"openai_api_key,omitempty"`    // Masked
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"` // Masked
	ModelGeneral    string `json:"model_general"`
	ModelClass      string `json:"model_classification"`
	ModelPlanning   string `json:"model_planning"`
	ModelCode       string `json:"model_code"`
	UseCustomModel  bool   `json:"use_custom_model"`
	CustomModel     string `json:"custom_model,omitempty"`
}

// MaskAPIKey masks an API key for safe display.
// Shows first 7 chars and last 4 chars, hides the middle.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) < 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// ToGatewayConfigResponse converts config to the masked gateway view.
func ToGatewayConfigResponse(cfg *config.Config) GatewayConfigResponse {
	return GatewayConfigResponse{
		Provider:        cfg.LLM.Provider,
		OllamaURL:       cfg.LLM.OllamaURL,
		OpenAIAPIKey:    MaskAPIKey(cfg.LLM.OpenAIAPIKey),
		AnthropicAPIKey: MaskAPIKey(cfg.LLM.AnthropicAPIKey),
		ModelGeneral:    cfg.Models.General,
		ModelClass:      cfg.Models.Classification,
		ModelPlanning:   cfg.Models.Planning,
		ModelCode:       cfg.Models.Code,
		UseCustomModel:  cfg.Models.UseCustomModel,
		CustomModel:     cfg.Models.CustomModel,
	}
}
