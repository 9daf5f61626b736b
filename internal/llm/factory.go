package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
)

// NewChatClient creates the provider client selected by configuration. The
// client's default model is the general-tier model; per-request models are
// chosen by the gateway.
func NewChatClient(cfg *config.Config, logger *zap.Logger) (ChatClient, error) {
	timeout := cfg.LLM.RequestTimeout
	model := cfg.ModelForTier(config.TierGeneral)

	switch cfg.LLM.Provider {
	case "openai", "":
		if cfg.LLM.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but no API key configured")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.LLM.OpenAIAPIKey,
			Model:   model,
			BaseURL: cfg.LLM.OpenAIBaseURL,
			Timeout: timeout,
		}, logger), nil
	case "anthropic":
		if cfg.LLM.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but no API key configured")
		}
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.LLM.AnthropicAPIKey,
			Model:   model,
			BaseURL: cfg.LLM.AnthropicBaseURL,
			Timeout: timeout,
		}, logger), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.LLM.OllamaURL,
			Model:   model,
			Timeout: timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.LLM.Provider)
	}
}
