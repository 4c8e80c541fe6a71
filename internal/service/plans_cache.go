package service

import (
	"sync"
	"time"

	"github.com/set-night/elli/internal/domain"
)

type PlansCache struct {
	mu       sync.RWMutex
	plans    map[string]*domain.Plan
	ordered  []domain.Plan
	cachedAt time.Time
	ttl      time.Duration
}

func NewPlansCache(ttl time.Duration) *PlansCache {
	return &PlansCache{ttl: ttl}
}

// Get returns the cached plans in catalogue order, or nil when stale.
func (c *PlansCache) Get() []domain.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ordered == nil || time.Since(c.cachedAt) > c.ttl {
		return nil
	}
	return c.ordered
}

func (c *PlansCache) Lookup(id string) (*domain.Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.plans == nil || time.Since(c.cachedAt) > c.ttl {
		return nil, false
	}
	p, ok := c.plans[id]
	return p, ok
}

func (c *PlansCache) Set(plans []domain.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ordered = plans
	c.plans = make(map[string]*domain.Plan, len(plans))
	for i := range plans {
		c.plans[plans[i].ID] = &plans[i]
	}
	c.cachedAt = time.Now()
}
