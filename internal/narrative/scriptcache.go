package narrative

import (
	"context"
	"sync"

	"drama-server/internal/domain"
)

// ScriptLoader fetches a compiled story script by id. The repository supplies
// the default implementation; tests inject their own.
type ScriptLoader func(ctx context.Context, storyID string) (*domain.StoryScript, error)

// ScriptCache is a bounded, lazily-populated cache of compiled story scripts.
// Entries are never invalidated: published scripts are immutable, so a stale
// hit is still a correct hit. When full, the oldest entry is evicted.
type ScriptCache struct {
	mu      sync.Mutex
	entries map[string]*domain.StoryScript
	order   []string
	limit   int
	loader  ScriptLoader
}

// NewScriptCache создает кэш скриптов с заданным лимитом записей.
func NewScriptCache(limit int, loader ScriptLoader) *ScriptCache {
	if limit <= 0 {
		limit = 64
	}
	return &ScriptCache{
		entries: make(map[string]*domain.StoryScript),
		order:   make([]string, 0, limit),
		limit:   limit,
		loader:  loader,
	}
}

// Get returns the cached script or loads and caches it. Concurrent misses for
// the same id may load twice; the second result simply overwrites the first.
func (c *ScriptCache) Get(ctx context.Context, storyID string) (*domain.StoryScript, error) {
	c.mu.Lock()
	if script, ok := c.entries[storyID]; ok {
		c.mu.Unlock()
		return script, nil
	}
	c.mu.Unlock()

	if c.loader == nil {
		return nil, domain.ErrValidation
	}

	script, err := c.loader(ctx, storyID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[storyID]; !ok {
		if len(c.order) >= c.limit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, storyID)
	}
	c.entries[storyID] = script
	return script, nil
}

// Len returns the number of cached scripts.
func (c *ScriptCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
