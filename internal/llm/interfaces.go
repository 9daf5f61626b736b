// Package llm provides the language model gateway for ScenePilot. Provider
// clients (OpenAI-compatible, Anthropic, Ollama) implement a common chat
// interface; the Gateway layers concurrency limits, rate limiting, response
// caching, and per-tier model routing on top.
package llm

import "context"

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`    // system, user, or assistant
	Content string `json:"content"`
}

// ChatRequest describes one completion request. Model may be empty, in which
// case the provider's configured default is used. A zero Temperature is sent
// as-is; callers wanting provider defaults should set the configured value.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p,omitempty"`
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a successful completion.
type ChatResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`         // Model that served the request
	FinishReason string `json:"finish_reason"` // stop, length, or provider-specific
	Usage        Usage  `json:"usage"`
}

// ChatClient is the interface provider clients implement.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GetModel() string
}

// BreakerStater is implemented by clients that expose their circuit breaker
// state for diagnostics.
type BreakerStater interface {
	BreakerState() string
}
