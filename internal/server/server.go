// Package server provides HTTP bridge initialization and lifecycle
// management for the ScenePilot sidecar.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/scene"
	"github.com/scenepilot/scenepilot/internal/services"
	"github.com/scenepilot/scenepilot/internal/session"
	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/pkg/types"
	"github.com/scenepilot/scenepilot/web/handlers"
)

// Deps bundles the collaborators the bridge serves. Sessions and Gateway are
// required; the rest may be nil, disabling the corresponding routes.
type Deps struct {
	Sessions *session.Manager
	Gateway  *llm.Gateway
	Store    transcript.Store
	Settings *services.SettingsService
	Scenes   *scene.Watcher
	Logger   *zap.Logger
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP bridge. Returns the actual address
// being listened on (useful for testing with port 0) and the WebSocketHub.
// The server shuts down gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, deps Deps) (string, *handlers.WebSocketHub, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wsHub := handlers.NewWebSocketHub(cfg.Server.Host, cfg.Server.Port, logger)
	go wsHub.Run()

	// Async job completions reach every connected host.
	deps.Sessions.OnResult(func(sessionID, jobID string, result *types.EngineResult) {
		wsHub.Broadcast(map[string]interface{}{
			"type":       "job_complete",
			"session_id": sessionID,
			"job_id":     jobID,
			"result":     result,
		})
	})

	api := handlers.NewAPIHandlers(handlers.Deps{
		Sessions: deps.Sessions,
		Gateway:  deps.Gateway,
		Store:    deps.Store,
		Settings: deps.Settings,
		Scenes:   deps.Scenes,
		Hub:      wsHub,
		Config:   cfg,
		Logger:   logger,
	})

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/chat", api.Chat)
	apiMux.HandleFunc("GET /api/plans/{id}", api.GetPlan)
	apiMux.HandleFunc("POST /api/plans/{id}/steps/{number}", api.ExecuteStep)
	apiMux.HandleFunc("POST /api/plans/{id}/execute", api.ExecutePlan)
	apiMux.HandleFunc("POST /api/conversation/clear", api.ClearConversation)
	apiMux.HandleFunc("GET /api/scene", api.GetScene)
	apiMux.HandleFunc("PUT /api/scene", api.PutScene)
	apiMux.HandleFunc("GET /api/transcript", api.ListTranscript)
	apiMux.HandleFunc("DELETE /api/transcript", api.ClearTranscript)
	apiMux.HandleFunc("GET /api/transcript/export", api.ExportTranscript)
	apiMux.HandleFunc("POST /api/transcript/import", api.ImportTranscript)
	apiMux.HandleFunc("GET /api/settings", api.GetSettings)
	apiMux.HandleFunc("PUT /api/settings", api.PutSettings)
	apiMux.HandleFunc("GET /api/llm/test-connection", api.TestConnection)
	apiMux.HandleFunc("GET /api/llm/stats", api.GatewayStats)
	apiMux.HandleFunc("GET /api/llm/config", api.GatewayConfig)
	apiMux.HandleFunc("POST /api/llm/cache/clear", api.ClearCache)
	apiMux.HandleFunc("GET /api/stats", api.Stats)

	mux := http.NewServeMux()

	// Health endpoint — no auth required, used by plugins and monitoring
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Rate limiting (10 req/sec, burst of 20), then security headers
	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // Pipeline requests can take a while
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()
	logger.Info("bridge listening", zap.String("addr", actualAddr))

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("bridge server error", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("bridge shutdown error", zap.Error(err))
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
