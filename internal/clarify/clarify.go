// Package clarify turns ambiguous user requests into targeted follow-up
// questions. An LLM-generated question is preferred; template rules cover
// provider outages. Answered clarifications are folded back into the
// original input for reprocessing.
package clarify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// ChatGateway is the slice of the LLM gateway the clarifier needs.
type ChatGateway interface {
	RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Response is one clarification question ready to show the user.
// ClarificationID is set only when an answer can be folded back via Resolve;
// template questions are answered by simply rephrasing.
type Response struct {
	Question        string  `json:"question"`
	Confidence      float64 `json:"confidence"`
	ClarificationID string  `json:"clarification_id,omitempty"`
}

// pendingRequest is an open clarification awaiting the user's answer.
type pendingRequest struct {
	OriginalInput string
	Question      string
	Reason        string
	CreatedAt     time.Time
}

// Clarifier generates clarification questions and tracks open ones.
type Clarifier struct {
	gateway ChatGateway
	pending *expirable.LRU[string, *pendingRequest]
	logger  *zap.Logger
}

// NewClarifier creates a clarifier whose open-request store is bounded by
// the pipeline clarification settings in cfg.
func NewClarifier(gateway ChatGateway, cfg *config.Config, logger *zap.Logger) *Clarifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	capacity := cfg.Pipeline.ClarificationCapacity
	if capacity <= 0 {
		capacity = 32
	}
	return &Clarifier{
		gateway: gateway,
		pending: expirable.NewLRU[string, *pendingRequest](capacity, nil, cfg.Pipeline.ClarificationTTL),
		logger:  logger,
	}
}

// Generate produces a clarification question for an ambiguous input. LLM
// questions are tracked for later resolution; template fallbacks are not,
// since their answers arrive as fresh input.
func (c *Clarifier) Generate(ctx context.Context, input, reason string, scene *types.SceneSnapshot) *Response {
	question, err := c.generateWithLLM(ctx, input, reason, scene)
	if err != nil {
		c.logger.Warn("llm clarification failed, using template", zap.Error(err))
		return c.generateFromTemplate(input, scene)
	}

	id := clarificationID(input)
	c.pending.Add(id, &pendingRequest{
		OriginalInput: input,
		Question:      question,
		Reason:        reason,
		CreatedAt:     time.Now(),
	})

	return &Response{
		Question:        question,
		Confidence:      0.8,
		ClarificationID: id,
	}
}

func (c *Clarifier) generateWithLLM(ctx context.Context, input, reason string, scene *types.SceneSnapshot) (string, error) {
	sceneContext := "No scene context available"
	if scene != nil {
		if data, err := json.MarshalIndent(scene, "", "  "); err == nil {
			sceneContext = string(data)
		}
	}

	resp, err := c.gateway.RequestTier(ctx, config.TierGeneral, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: llm.ClarificationPrompt(sceneContext, input, reason)},
		},
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}

	question := strings.TrimSpace(resp.Content)
	if question == "" {
		return "", fmt.Errorf("empty clarification question")
	}
	return question, nil
}

// generateFromTemplate picks the first matching template rule. Exactly one
// rule fires for any input.
func (c *Clarifier) generateFromTemplate(input string, scene *types.SceneSnapshot) *Response {
	inputLower := strings.ToLower(input)

	var question string
	switch {
	case containsAny(inputLower, "this", "that", "it"):
		selected := 0
		if scene != nil {
			selected = len(scene.SelectedObjects())
		}
		if selected > 0 {
			question = fmt.Sprintf("I see you have %d object(s) selected. Are you referring to the selected object(s), or would you like me to list all objects in the scene so you can specify which one?", selected)
		} else {
			question = "I need to know which object you're referring to. Would you like me to list the objects in your scene so you can specify which one?"
		}
	case containsAny(inputLower, "bigger", "smaller"):
		question = "I'd be happy to help with resizing! Could you please specify:\n1. Which object should be resized?\n2. How much bigger/smaller? (e.g., '2x larger', 'scale by 0.5', 'make it 3 units wide')"
	case containsAny(inputLower, "color", "red", "blue"):
		question = "I can help with coloring! Please clarify:\n1. Which object should be colored?\n2. Should I create a new material or modify an existing one?"
	case strings.Contains(inputLower, "move"):
		question = "I can help with moving objects! Please specify:\n1. Which object should be moved?\n2. Where should it be moved to? (e.g., 'to position (1,2,3)', 'up by 2 units', 'next to the cube')"
	default:
		question = fmt.Sprintf("I need more information to help you with '%s'. Could you please provide more specific details about what you'd like me to do?", input)
	}

	return &Response{Question: question, Confidence: 0.6}
}

// Resolve folds the user's answer into the original input. Each open
// clarification resolves at most once.
func (c *Clarifier) Resolve(id, reply string) (string, bool) {
	req, ok := c.pending.Get(id)
	if !ok {
		return "", false
	}
	c.pending.Remove(id)
	return fmt.Sprintf("%s\n\nClarification: %s", req.OriginalInput, reply), true
}

// PendingCount reports how many clarifications are awaiting answers.
func (c *Clarifier) PendingCount() int {
	return c.pending.Len()
}

// DetectAmbiguities lists the ambiguity patterns present in an input. It is
// diagnostic: routing decisions come from the classifier, not from here.
func (c *Clarifier) DetectAmbiguities(input string, scene *types.SceneSnapshot) []string {
	inputLower := strings.ToLower(input)
	var reasons []string

	hasVague := containsAny(inputLower, "this", "that", "it", "them", "these", "those")
	if hasVague {
		reasons = append(reasons, "Vague object reference")
	}

	if containsAny(inputLower, "bigger", "smaller", "more", "less") && !strings.ContainsAny(inputLower, "0123456789") {
		reasons = append(reasons, "Missing size specification")
	}

	if containsAny(inputLower, "red", "blue", "green", "yellow", "color", "material") &&
		!hasVague && !mentionsSceneObject(inputLower, scene) {
		reasons = append(reasons, "Color specified without target object")
	}

	if strings.Contains(inputLower, "move") && !containsAny(inputLower, "to", "by", "up", "down", "left", "right") {
		reasons = append(reasons, "Movement without destination")
	}

	return reasons
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func mentionsSceneObject(inputLower string, scene *types.SceneSnapshot) bool {
	if scene == nil {
		return false
	}
	for _, obj := range scene.Objects {
		if strings.Contains(inputLower, strings.ToLower(obj.Name)) {
			return true
		}
	}
	return false
}

// clarificationID derives a short stable-format id from the input and the
// current time.
func clarificationID(input string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d", input, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])[:8]
}
