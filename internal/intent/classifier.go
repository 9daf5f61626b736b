// Package intent classifies user input into the three pipeline routes: a
// direct task, a question, or a request too ambiguous to act on. An LLM
// classification is preferred; a keyword scorer serves as offline fallback.
package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// ChatGateway is the slice of the LLM gateway the classifier needs.
type ChatGateway interface {
	RequestTier(ctx context.Context, tier string, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Classifier decides how the pipeline routes one user input.
type Classifier struct {
	gateway  ChatGateway
	keywords types.ClassifierKeywords
	cache    *expirable.LRU[string, *types.ClassificationResult]
	logger   *zap.Logger
}

// NewClassifier creates a classifier using the pipeline cache settings from
// cfg.
func NewClassifier(gateway ChatGateway, cfg *config.Config, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.Pipeline.ClassificationCacheSize
	if size <= 0 {
		size = 512
	}
	return &Classifier{
		gateway:  gateway,
		keywords: types.DefaultClassifierKeywords(),
		cache:    expirable.NewLRU[string, *types.ClassificationResult](size, nil, cfg.Pipeline.ClassificationCacheTTL),
		logger:   logger,
	}
}

// Classify routes one user input. LLM failures fall back to keyword scoring,
// so a classification is always produced. Only LLM results are cached;
// fallback results stay uncached so a recovered provider is retried on the
// next identical input.
func (c *Classifier) Classify(ctx context.Context, input string, contextInfo map[string]any) *types.ClassificationResult {
	key := cacheKey(input, contextInfo)
	if result, ok := c.cache.Get(key); ok {
		return result
	}

	result, err := c.classifyWithLLM(ctx, input, contextInfo)
	if err != nil {
		c.logger.Warn("llm classification failed, falling back to keywords", zap.Error(err))
		return c.classifyWithKeywords(input)
	}

	c.cache.Add(key, result)
	return result
}

func (c *Classifier) classifyWithLLM(ctx context.Context, input string, contextInfo map[string]any) (*types.ClassificationResult, error) {
	userContent := input
	if len(contextInfo) > 0 {
		contextJSON, err := json.MarshalIndent(contextInfo, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode context: %w", err)
		}
		userContent = fmt.Sprintf("Context: %s\n\nUser Input: %s", contextJSON, input)
	}

	resp, err := c.gateway.RequestTier(ctx, config.TierClassification, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: llm.TaskClassifierPrompt},
			{Role: llm.RoleUser, Content: userContent},
		},
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Classification string   `json:"classification"`
		Confidence     *float64 `json:"confidence"`
		Reasoning      string   `json:"reasoning"`
		KeywordsFound  []string `json:"keywords_found"`
		MissingInfo    []string `json:"missing_info"`
	}
	if err := llm.DecodeJSON(resp.Content, &raw); err != nil {
		return nil, err
	}

	if raw.Classification == "" {
		raw.Classification = string(types.TaskTypeTask)
	}
	if !types.IsValidTaskType(types.TaskType(raw.Classification)) {
		return nil, fmt.Errorf("invalid classification %q", raw.Classification)
	}
	confidence := 0.5
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}

	return &types.ClassificationResult{
		TaskType:      types.TaskType(raw.Classification),
		Confidence:    confidence,
		Reasoning:     raw.Reasoning,
		KeywordsFound: raw.KeywordsFound,
		MissingInfo:   raw.MissingInfo,
	}, nil
}

// classifyWithKeywords scores the input against the three keyword tables by
// substring containment. Vague references with no other signal ask for
// clarification; otherwise question beats task only on a strict majority.
func (c *Classifier) classifyWithKeywords(input string) *types.ClassificationResult {
	inputLower := strings.ToLower(input)

	questionFound := matchKeywords(inputLower, c.keywords.Question)
	taskFound := matchKeywords(inputLower, c.keywords.Task)
	vagueFound := matchKeywords(inputLower, c.keywords.Vague)

	questionScore := len(questionFound)
	taskScore := len(taskFound)

	if len(vagueFound) > 0 && questionScore+taskScore == 0 {
		return &types.ClassificationResult{
			TaskType:      types.TaskTypeClarification,
			Confidence:    0.7,
			Reasoning:     "Contains vague references that need clarification",
			KeywordsFound: vagueFound,
			MissingInfo:   []string{"Specific object or parameter references"},
		}
	}

	if questionScore > taskScore {
		confidence := 0.6
		if questionScore > 1 {
			confidence = 0.8
		}
		return &types.ClassificationResult{
			TaskType:      types.TaskTypeQuestion,
			Confidence:    confidence,
			Reasoning:     "Contains question keywords",
			KeywordsFound: questionFound,
		}
	}

	confidence := 0.5
	if taskScore > 0 {
		confidence = 0.8
	}
	return &types.ClassificationResult{
		TaskType:      types.TaskTypeTask,
		Confidence:    confidence,
		Reasoning:     "Contains task keywords or appears to be a command",
		KeywordsFound: taskFound,
	}
}

func matchKeywords(inputLower string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(inputLower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// cacheKey hashes the input together with its context so the same text under
// a different scene does not reuse a stale classification.
func cacheKey(input string, contextInfo map[string]any) string {
	payload, _ := json.Marshal(struct {
		Input   string         `json:"input"`
		Context map[string]any `json:"context"`
	}{Input: input, Context: contextInfo})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// CacheLen reports how many classifications are currently cached.
func (c *Classifier) CacheLen() int {
	return c.cache.Len()
}

// ClearCache drops all cached classifications.
func (c *Classifier) ClearCache() {
	c.cache.Purge()
}
