package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIClientChat(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody openAIChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "A cube has 6 faces."},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL}, nil)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "You are ScenePilot."},
			{Role: RoleUser, Content: "How many faces does a cube have?"},
		},
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("request path = %q, want /v1/chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q, want default gpt-4o-mini", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 {
		t.Errorf("request messages = %d, want 2", len(gotBody.Messages))
	}
	if gotBody.MaxTokens != 100 {
		t.Errorf("request max_tokens = %d, want 100", gotBody.MaxTokens)
	}

	if resp.Content != "A cube has 6 faces." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("Usage.TotalTokens = %d, want 20", resp.Usage.TotalTokens)
	}
}

func TestOpenAIClientChatServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "bad-key", BaseURL: server.URL}, nil)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Chat() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("error = %q, want it to mention status 401", err)
	}

	gerr := Categorize(err, "gpt-4o-mini")
	if gerr.Kind != ErrKindAuth {
		t.Errorf("categorized kind = %q, want %q", gerr.Kind, ErrKindAuth)
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, nil)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error = %v, want no choices error", err)
	}
}

func TestAnthropicClientLiftsSystemMessages(t *testing.T) {
	var gotBody anthropicMessagesRequest
	var gotVersion, gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-haiku-4-5-20251001",
			"content":     []map[string]string{{"type": "text", "text": "Done."}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 9, "output_tokens": 3},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant", BaseURL: server.URL}, nil)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "You are ScenePilot."},
			{Role: RoleUser, Content: "make a cube"},
		},
		MaxTokens: 200,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotKey != "sk-ant" {
		t.Errorf("x-api-key = %q, want sk-ant", gotKey)
	}
	if gotVersion != "2023-06-01" {
		t.Errorf("anthropic-version = %q, want 2023-06-01", gotVersion)
	}
	if gotBody.System != "You are ScenePilot." {
		t.Errorf("system field = %q, want lifted system prompt", gotBody.System)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != RoleUser {
		t.Errorf("messages = %+v, want only the user message", gotBody.Messages)
	}
	if gotBody.MaxTokens != 200 {
		t.Errorf("max_tokens = %d, want 200", gotBody.MaxTokens)
	}

	if resp.Content != "Done." {
		t.Errorf("Content = %q, want Done.", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop (mapped from end_turn)", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("Usage.TotalTokens = %d, want 12", resp.Usage.TotalTokens)
	}
}

func TestOllamaClientChat(t *testing.T) {
	var gotPath string
	var gotBody ollamaChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "qwen2.5:7b",
			"message":           map[string]string{"role": "assistant", "content": "ok"},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 7,
			"eval_count":        2,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL}, nil)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages:    []ChatMessage{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.3,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotPath != "/api/chat" {
		t.Errorf("request path = %q, want /api/chat", gotPath)
	}
	if gotBody.Stream {
		t.Error("stream = true, want false")
	}
	if gotBody.Options == nil || gotBody.Options.Temperature != 0.3 || gotBody.Options.NumPredict != 64 {
		t.Errorf("options = %+v, want temperature 0.3 and num_predict 64", gotBody.Options)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if resp.Usage.TotalTokens != 9 {
		t.Errorf("Usage.TotalTokens = %d, want 9", resp.Usage.TotalTokens)
	}
}

func TestOllamaClientListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("request path = %q, want /api/tags", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models": [{"name": "qwen2.5:7b"}, {"name": "llama3.2:3b"}]}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL}, nil)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0] != "qwen2.5:7b" || models[1] != "llama3.2:3b" {
		t.Errorf("models = %v", models)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	}, nil)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("attempt %d: error = %v, want boom", i+1, err)
		}
	}

	if cb.State() != "open" {
		t.Fatalf("State() = %q after 3 failures, want open", cb.State())
	}

	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		t.Error("function should not run while circuit is open")
		return nil, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerIgnoresCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker("test", DefaultCircuitBreakerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		t.Error("function should not run with cancelled context")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if cb.State() != "closed" {
		t.Errorf("State() = %q, want closed (cancellation is not a provider failure)", cb.State())
	}
}
