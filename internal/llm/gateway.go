package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/scenepilot/scenepilot/internal/config"
)

// Gateway is the single entry point the pipeline uses to talk to a language
// model. It layers per-tier model routing, a concurrency semaphore, a token
// bucket rate limiter, and a TTL+LRU response cache over the provider client.
type Gateway struct {
	client  ChatClient
	cfg     *config.Config
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	cache   *expirable.LRU[string, *ChatResponse]
	logger  *zap.Logger

	cachingEnabled atomic.Bool
	requests       atomic.Int64
	cacheHits      atomic.Int64
	failures       atomic.Int64
}

// NewGateway creates a gateway around the given provider client.
func NewGateway(client ChatClient, cfg *config.Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	rpm := cfg.LLM.RequestsPerMin
	if rpm <= 0 {
		rpm = 60
	}
	maxConcurrent := cfg.LLM.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	cacheSize := cfg.LLM.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}

	g := &Gateway{
		client:  client,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), maxConcurrent),
		cache:   expirable.NewLRU[string, *ChatResponse](cacheSize, nil, cfg.LLM.CacheTTL),
		logger:  logger,
	}
	g.cachingEnabled.Store(cfg.LLM.EnableCaching)
	return g
}

// Request sends a chat request through the gateway. Identical requests within
// the cache TTL are served from cache without touching the provider.
func (g *Gateway) Request(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return g.do(ctx, req, g.cachingEnabled.Load())
}

// RequestTier routes the request to the model configured for the given tier
// (general, classification, planning, or code) before sending it.
func (g *Gateway) RequestTier(ctx context.Context, tier string, req ChatRequest) (*ChatResponse, error) {
	req.Model = g.cfg.ModelForTier(tier)
	return g.do(ctx, req, g.cachingEnabled.Load())
}

func (g *Gateway) do(ctx context.Context, req ChatRequest, useCache bool) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = g.client.GetModel()
	}
	g.requests.Add(1)

	var key string
	if useCache {
		key = cacheKey(req)
		if resp, ok := g.cache.Get(key); ok {
			g.cacheHits.Add(1)
			g.logger.Debug("llm cache hit", zap.String("model", req.Model))
			return resp, nil
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		g.failures.Add(1)
		return nil, Categorize(err, req.Model)
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		g.failures.Add(1)
		return nil, Categorize(err, req.Model)
	}
	defer g.sem.Release(1)

	start := time.Now()
	resp, err := g.client.Chat(ctx, req)
	if err != nil {
		g.failures.Add(1)
		gerr := Categorize(err, req.Model)
		g.logger.Warn("llm request failed",
			zap.String("model", req.Model),
			zap.String("kind", string(gerr.Kind)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, gerr
	}

	g.logger.Debug("llm request completed",
		zap.String("model", resp.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	if useCache {
		g.cache.Add(key, resp)
	}
	return resp, nil
}

// cacheKeyFields pins the exact request fields (and their order) that make
// two requests identical for caching purposes.
type cacheKeyFields struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

func cacheKey(req ChatRequest) string {
	data, _ := json.Marshal(cacheKeyFields{
		Messages:    req.Messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SetCaching toggles the response cache at runtime. Disabling also purges
// cached responses so stale entries cannot resurface after re-enabling.
func (g *Gateway) SetCaching(enabled bool) {
	g.cachingEnabled.Store(enabled)
	if !enabled {
		g.cache.Purge()
	}
}

// ClearCache drops all cached responses.
func (g *Gateway) ClearCache() {
	g.cache.Purge()
}

// ConnectionTestResult reports the outcome of a connectivity probe.
type ConnectionTestResult struct {
	Success   bool   `json:"success"`
	Content   string `json:"content,omitempty"`
	Model     string `json:"model,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TestConnection sends a tiny uncached completion to verify the provider is
// reachable and the credentials work. The probe is capped at 10 seconds.
func (g *Gateway) TestConnection(ctx context.Context) *ConnectionTestResult {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "Hello, please respond with 'Connection successful!'"},
		},
		Model:     g.cfg.ModelForTier(config.TierGeneral),
		MaxTokens: 50,
	}

	start := time.Now()
	resp, err := g.do(ctx, req, false)
	if err != nil {
		return &ConnectionTestResult{
			Success: false,
			Model:   req.Model,
			Error:   err.Error(),
		}
	}
	return &ConnectionTestResult{
		Success:   true,
		Content:   resp.Content,
		Model:     resp.Model,
		LatencyMS: time.Since(start).Milliseconds(),
	}
}

// GatewayStats is a snapshot of gateway counters.
type GatewayStats struct {
	Requests     int64  `json:"requests"`
	CacheHits    int64  `json:"cache_hits"`
	Failures     int64  `json:"failures"`
	CacheSize    int    `json:"cache_size"`
	CacheEnabled bool   `json:"cache_enabled"`
	Provider     string `json:"provider"`
	BreakerState string `json:"breaker_state,omitempty"`
}

// Stats returns current gateway counters plus the provider breaker state when
// the client exposes one.
func (g *Gateway) Stats() GatewayStats {
	stats := GatewayStats{
		Requests:     g.requests.Load(),
		CacheHits:    g.cacheHits.Load(),
		Failures:     g.failures.Load(),
		CacheSize:    g.cache.Len(),
		CacheEnabled: g.cachingEnabled.Load(),
		Provider:     g.cfg.LLM.Provider,
	}
	if bs, ok := g.client.(BreakerStater); ok {
		stats.BreakerState = bs.BreakerState()
	}
	return stats
}
