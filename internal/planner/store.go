package planner

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// Store holds plans between preview and step execution. Entries expire after
// the configured TTL and the oldest plan is evicted once the cap is reached,
// so abandoned plans never accumulate.
type Store struct {
	plans *expirable.LRU[string, *types.ExecutionPlan]
}

// NewStore creates a plan store using the pipeline plan settings from cfg.
func NewStore(cfg *config.Config) *Store {
	capacity := cfg.Pipeline.PlanCapacity
	if capacity <= 0 {
		capacity = 64
	}
	ttl := cfg.Pipeline.PlanTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		plans: expirable.NewLRU[string, *types.ExecutionPlan](capacity, nil, ttl),
	}
}

// Put assigns the plan an id and stores it. The id is written back onto the
// plan so previews and step results can reference it.
func (s *Store) Put(plan *types.ExecutionPlan) string {
	id := "plan_" + uuid.New().String()[:8]
	plan.ID = id
	s.plans.Add(id, plan)
	return id
}

// Get returns the stored plan with the given id.
func (s *Store) Get(id string) (*types.ExecutionPlan, bool) {
	return s.plans.Get(id)
}

// Remove drops a stored plan before its TTL expires.
func (s *Store) Remove(id string) {
	s.plans.Remove(id)
}

// IDs lists the ids of all stored plans, oldest first.
func (s *Store) IDs() []string {
	return s.plans.Keys()
}

// Len reports how many plans are currently stored.
func (s *Store) Len() int {
	return s.plans.Len()
}
