// Package memory tracks conversation history and scene entities so vague
// follow-ups ("make it bigger") can be grounded against what was actually
// discussed. It keeps a bounded turn ring, per-entity mention counts, a
// current focus, and resolves pronouns against all three.
package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/pkg/types"
)

// pronounPatterns match whole-word pronouns case-insensitively.
var pronounPatterns = map[string]*regexp.Regexp{
	"it":    regexp.MustCompile(`(?i)\bit\b`),
	"this":  regexp.MustCompile(`(?i)\bthis\b`),
	"that":  regexp.MustCompile(`(?i)\bthat\b`),
	"they":  regexp.MustCompile(`(?i)\bthey\b`),
	"them":  regexp.MustCompile(`(?i)\bthem\b`),
	"these": regexp.MustCompile(`(?i)\bthese\b`),
	"those": regexp.MustCompile(`(?i)\bthose\b`),
}

// pronounOrder fixes the substitution order for deterministic output.
var pronounOrder = []string{"it", "this", "that", "they", "them", "these", "those"}

// Memory is the per-session conversation state. All methods are safe for
// concurrent use.
type Memory struct {
	mu       sync.RWMutex
	turns    []types.ConversationTurn
	maxTurns int
	entities map[string]*types.Entity
	focus    string // name of the entity in focus, empty when untracked
	scene    *types.SceneSnapshot
	logger   *zap.Logger
}

// NewMemory creates a conversation memory bounded to maxTurns turns.
func NewMemory(maxTurns int, logger *zap.Logger) *Memory {
	if maxTurns <= 0 {
		maxTurns = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		maxTurns: maxTurns,
		entities: make(map[string]*types.Entity),
		logger:   logger,
	}
}

// AddTurn records one exchange. Scene entities named in the input get their
// mention counts and timestamps bumped, and the first mentioned entity
// becomes the current focus. Returns the entities mentioned.
func (m *Memory) AddTurn(userInput, assistantResponse string, turnType types.TurnType) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	mentioned := m.extractEntities(userInput)

	m.turns = append(m.turns, types.ConversationTurn{
		Timestamp:         now,
		UserInput:         userInput,
		AssistantResponse: assistantResponse,
		EntitiesMentioned: mentioned,
		TurnType:          turnType,
	})
	if len(m.turns) > m.maxTurns {
		m.turns = m.turns[len(m.turns)-m.maxTurns:]
	}

	for _, name := range mentioned {
		if entity, ok := m.entities[name]; ok {
			entity.MentionCount++
			entity.LastMentioned = now
		}
	}
	if len(mentioned) > 0 {
		m.focus = mentioned[0]
	}

	return mentioned
}

// UpdateSceneState syncs the entity table with a scene snapshot. New scene
// items are registered with a zero mention count; existing entries keep
// their counts and get fresh properties.
func (m *Memory) UpdateSceneState(scene *types.SceneSnapshot) {
	if scene == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scene = scene
	m.syncScene(scene, time.Now())
}

// syncScene upserts one entity per scene item. Requires m.mu held.
func (m *Memory) syncScene(scene *types.SceneSnapshot, now time.Time) {
	for _, obj := range scene.Objects {
		m.upsertEntity(obj.Name, types.EntityObject, map[string]any{
			"type":     obj.Type,
			"location": obj.Location,
			"selected": obj.Selected,
		}, now)
	}
	for _, mat := range scene.Materials {
		m.upsertEntity(mat.Name, types.EntityMaterial, map[string]any{
			"users": mat.Users,
		}, now)
	}
	for _, light := range scene.Lights {
		m.upsertEntity(light.Name, types.EntityLight, map[string]any{
			"type":   light.Type,
			"energy": light.Energy,
		}, now)
	}
}

// upsertEntity requires m.mu held.
func (m *Memory) upsertEntity(name string, entityType string, properties map[string]any, now time.Time) {
	if entity, ok := m.entities[name]; ok {
		if entity.Properties == nil {
			entity.Properties = make(map[string]any, len(properties))
		}
		for k, v := range properties {
			entity.Properties[k] = v
		}
		return
	}
	m.entities[name] = &types.Entity{
		Name:          name,
		EntityType:    entityType,
		Properties:    properties,
		LastMentioned: now,
		MentionCount:  0,
	}
}

// extractEntities finds scene entity names in the input by case-insensitive
// containment, ordered by where they appear so the focus lands on the first
// thing the user named. Requires m.mu held (read or write).
func (m *Memory) extractEntities(input string) []string {
	inputLower := strings.ToLower(input)
	type hit struct {
		name string
		pos  int
	}
	var hits []hit

	for _, entity := range m.sortedEntities() {
		pos := strings.Index(inputLower, strings.ToLower(entity.Name))
		if pos == -1 {
			for _, alias := range entity.Aliases {
				if alias == "" {
					continue
				}
				if p := strings.Index(inputLower, strings.ToLower(alias)); p != -1 {
					pos = p
					break
				}
			}
		}
		if pos != -1 {
			hits = append(hits, hit{name: entity.Name, pos: pos})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}

// sortedEntities returns entities ordered by name for deterministic
// extraction. Requires m.mu held.
func (m *Memory) sortedEntities() []*types.Entity {
	out := make([]*types.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolvePronouns rewrites whole-word pronouns in the input against the
// conversation state. Pronouns with no candidate referent are left alone so
// the clarification stage can catch them.
func (m *Memory) ResolvePronouns(input string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resolved := input
	for _, pronoun := range pronounOrder {
		replacement := m.resolvePronoun(pronoun)
		if replacement == "" {
			continue
		}
		// Literal replacement: entity names may contain $, which
		// ReplaceAllString would expand as a capture-group reference.
		resolved = pronounPatterns[pronoun].ReplaceAllLiteralString(resolved, replacement)
	}
	if resolved != input {
		m.logger.Debug("resolved pronouns",
			zap.String("input", input),
			zap.String("resolved", resolved))
	}
	return resolved
}

// resolvePronoun requires m.mu held.
func (m *Memory) resolvePronoun(pronoun string) string {
	switch pronoun {
	case "it":
		return m.resolveIt()
	case "this":
		if m.focus != "" {
			return m.focus
		}
		return m.resolveIt()
	case "that":
		recent := m.recentObjects(3)
		if len(recent) >= 2 {
			return recent[1]
		}
		return m.resolveIt()
	case "they", "them":
		return m.resolveThey()
	case "these", "those":
		if sel := m.selectedObjects(); len(sel) > 1 {
			return strings.Join(sel, ", ")
		}
		return m.resolveThey()
	}
	return ""
}

// resolveIt prefers the most recently mentioned object, then a sole selected
// object. Requires m.mu held.
func (m *Memory) resolveIt() string {
	if recent := m.recentObjects(1); len(recent) > 0 {
		return recent[0]
	}
	if sel := m.selectedObjects(); len(sel) == 1 {
		return sel[0]
	}
	return ""
}

// resolveThey needs at least two discussed objects before it will expand a
// plural pronoun; otherwise the current multi-selection stands in. Requires
// m.mu held.
func (m *Memory) resolveThey() string {
	recent := m.recentObjects(3)
	if len(recent) >= 2 {
		return strings.Join(recent, ", ")
	}
	if sel := m.selectedObjects(); len(sel) > 1 {
		return strings.Join(sel, ", ")
	}
	return ""
}

// recentObjects lists up to limit object entity names that have actually
// been mentioned, most recent first. Requires m.mu held.
func (m *Memory) recentObjects(limit int) []string {
	candidates := make([]*types.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		if e.EntityType == types.EntityObject && e.MentionCount > 0 {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LastMentioned.Equal(candidates[j].LastMentioned) {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].LastMentioned.After(candidates[j].LastMentioned)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	names := make([]string, len(candidates))
	for i, e := range candidates {
		names[i] = e.Name
	}
	return names
}

// selectedObjects requires m.mu held.
func (m *Memory) selectedObjects() []string {
	if m.scene == nil {
		return nil
	}
	return m.scene.SelectedObjects()
}

// ContextSummary renders the conversation state for prompt embedding: the
// last two turns, the current focus, and the most recently mentioned
// entities.
func (m *Memory) ContextSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var parts []string

	if len(m.turns) > 0 {
		parts = append(parts, "Recent conversation:")
		start := len(m.turns) - 2
		if start < 0 {
			start = 0
		}
		for _, turn := range m.turns[start:] {
			parts = append(parts,
				fmt.Sprintf("User: %s...", truncate(turn.UserInput, 100)),
				fmt.Sprintf("Assistant: %s...", truncate(turn.AssistantResponse, 100)))
		}
	}

	if m.focus != "" {
		if entity, ok := m.entities[m.focus]; ok {
			parts = append(parts, fmt.Sprintf("Current focus: %s (%s)", entity.Name, entity.EntityType))
		}
	}

	if recent := m.recentMentioned(3); len(recent) > 0 {
		parts = append(parts, fmt.Sprintf("Recently mentioned: %s", strings.Join(recent, ", ")))
	}

	return strings.Join(parts, "\n")
}

// recentMentioned lists up to limit entity names of any type with at least
// one mention, most recent first. Requires m.mu held.
func (m *Memory) recentMentioned(limit int) []string {
	candidates := make([]*types.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		if e.MentionCount > 0 {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LastMentioned.Equal(candidates[j].LastMentioned) {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].LastMentioned.After(candidates[j].LastMentioned)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	names := make([]string, len(candidates))
	for i, e := range candidates {
		names[i] = e.Name
	}
	return names
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// RecentTurns returns copies of the most recent n turns, oldest first.
func (m *Memory) RecentTurns(n int) []types.ConversationTurn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]types.ConversationTurn, n)
	copy(out, m.turns[len(m.turns)-n:])
	return out
}

// Entities returns a copy of the entity table.
func (m *Memory) Entities() []types.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Entity, 0, len(m.entities))
	for _, e := range m.sortedEntities() {
		out = append(out, *e)
	}
	return out
}

// Focus returns the current focus entity name, empty when untracked.
func (m *Memory) Focus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focus
}

// TurnCount reports how many turns are currently held.
func (m *Memory) TurnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Scene returns the most recently ingested scene snapshot, or nil when no
// snapshot has been seen.
func (m *Memory) Scene() *types.SceneSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scene
}

// Clear drops all turns, entities, and focus. The scene reference survives
// and its entities are re-registered with zero counts so pronoun fallbacks
// keep working after a reset.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = nil
	m.entities = make(map[string]*types.Entity)
	m.focus = ""

	if m.scene != nil {
		m.syncScene(m.scene, time.Now())
	}
}
