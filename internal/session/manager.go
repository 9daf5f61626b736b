// Package session maps session identifiers to per-session orchestration
// stacks. Each session gets its own conversation memory, clarifier, planner,
// plan store, and engine; the LLM gateway is shared so rate limits, the
// response cache, and circuit breakers apply process-wide.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/clarify"
	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/engine"
	"github.com/scenepilot/scenepilot/internal/intent"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/memory"
	"github.com/scenepilot/scenepilot/internal/planner"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// DefaultSession is used when a request carries no session id.
const DefaultSession = "default"

// DefaultMaxSessions bounds how many stacks one bridge process holds.
const DefaultMaxSessions = 16

type entry struct {
	engine   *engine.Engine
	lastUsed time.Time
}

// Manager creates and caches per-session engines on demand. When the
// session cap is reached the least recently used idle session is evicted.
type Manager struct {
	gateway *llm.Gateway
	cfg     *config.Config
	logger  *zap.Logger
	max     int

	mu       sync.Mutex
	sessions map[string]*entry
	onResult func(sessionID, jobID string, result *types.EngineResult)
}

// NewManager creates a session manager sharing one gateway across sessions.
func NewManager(gateway *llm.Gateway, cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gateway:  gateway,
		cfg:      cfg,
		logger:   logger,
		max:      DefaultMaxSessions,
		sessions: make(map[string]*entry),
	}
}

// OnResult registers a callback fired when any session's async job
// completes. Must be called before the first Get; engines built earlier do
// not pick it up.
func (m *Manager) OnResult(fn func(sessionID, jobID string, result *types.EngineResult)) {
	m.mu.Lock()
	m.onResult = fn
	m.mu.Unlock()
}

// Get returns the engine for the given session id, creating the stack on
// first use. An empty id selects the default session.
func (m *Manager) Get(sessionID string) (*engine.Engine, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok {
		e.lastUsed = time.Now()
		return e.engine, nil
	}

	if len(m.sessions) >= m.max {
		if !m.evictIdleLocked() {
			return nil, fmt.Errorf("session limit reached (%d) and all sessions are busy", m.max)
		}
	}

	eng, err := m.buildStack(sessionID)
	if err != nil {
		return nil, err
	}
	m.sessions[sessionID] = &entry{engine: eng, lastUsed: time.Now()}
	m.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.Int("active_sessions", len(m.sessions)))
	return eng, nil
}

// buildStack wires a fresh orchestration stack around the shared gateway.
func (m *Manager) buildStack(sessionID string) (*engine.Engine, error) {
	log := m.logger.With(zap.String("session_id", sessionID))

	mem := memory.NewMemory(m.cfg.Pipeline.MemoryTurns, log)
	classifier := intent.NewClassifier(m.gateway, m.cfg, log)
	clarifier := clarify.NewClarifier(m.gateway, m.cfg, log)
	plnr := planner.NewPlanner(m.gateway, m.cfg, log)
	plans := planner.NewStore(m.cfg)

	eng, err := engine.NewEngine(engine.Deps{
		Gateway:    m.gateway,
		Classifier: classifier,
		Clarifier:  clarifier,
		Planner:    plnr,
		Memory:     mem,
		Plans:      plans,
	}, m.cfg, log)
	if err != nil {
		return nil, err
	}
	if fn := m.onResult; fn != nil {
		eng.OnResult(func(jobID string, result *types.EngineResult) {
			fn(sessionID, jobID, result)
		})
	}
	return eng, nil
}

// evictIdleLocked removes the least recently used session whose engine is
// not mid-request. Returns false when every session is busy.
func (m *Manager) evictIdleLocked() bool {
	var oldest string
	var oldestAt time.Time
	for id, e := range m.sessions {
		if e.engine.Busy() {
			continue
		}
		if oldest == "" || e.lastUsed.Before(oldestAt) {
			oldest = id
			oldestAt = e.lastUsed
		}
	}
	if oldest == "" {
		return false
	}
	delete(m.sessions, oldest)
	m.logger.Info("session evicted", zap.String("session_id", oldest))
	return true
}

// Remove drops a session's stack, discarding its conversation state.
func (m *Manager) Remove(sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		delete(m.sessions, sessionID)
		m.logger.Info("session removed", zap.String("session_id", sessionID))
	}
}

// Sessions returns the active session ids, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ApplySettings pushes new assistant settings to every active session.
// Sessions created afterwards still seed from config, so callers should
// persist the settings too.
func (m *Manager) ApplySettings(settings types.AssistantSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sessions {
		if err := e.engine.ApplySettings(settings); err != nil {
			return err
		}
	}
	return nil
}

// SetMaxSessions overrides the session cap. Intended for tests.
func (m *Manager) SetMaxSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.max = n
	}
}
