package rule

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache is a read-through cache over a Store. Administrative writes pass
// through to the underlying store and invalidate the cache, so readers see
// rule changes on the next evaluation. Entries also expire after ttl to
// bound staleness when another instance writes to the same database.
//
// Cache implements Store and is handed to the normalizer and prioritizer
// explicitly; there is no ambient global rule state.
type Cache struct {
	store Store
	ttl   time.Duration

	mu       sync.RWMutex
	version  uint64
	severity map[string]severityEntry
	category map[string]categoryEntry
	priority map[string]priorityEntry
}

type severityEntry struct {
	rows     []*SeverityMapping
	loadedAt time.Time
}

type categoryEntry struct {
	rows     []*CategoryMapping
	loadedAt time.Time
}

type priorityEntry struct {
	rows     []*PriorityRule
	loadedAt time.Time
}

// NewCache wraps store with a cache whose entries expire after ttl.
// A non-positive ttl disables expiry; entries then live until the next write.
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{
		store:    store,
		ttl:      ttl,
		severity: make(map[string]severityEntry),
		category: make(map[string]categoryEntry),
		priority: make(map[string]priorityEntry),
	}
}

// Version returns the invalidation counter, incremented on every write.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Invalidate drops all cached entries and bumps the version.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Cache) invalidateLocked() {
	c.version++
	c.severity = make(map[string]severityEntry)
	c.category = make(map[string]categoryEntry)
	c.priority = make(map[string]priorityEntry)
}

func (c *Cache) fresh(loadedAt time.Time) bool {
	return c.ttl <= 0 || time.Since(loadedAt) < c.ttl
}

// ListEnabledSeverityMappings implements Provider with caching.
func (c *Cache) ListEnabledSeverityMappings(ctx context.Context, connectorType, vendor string) ([]*SeverityMapping, error) {
	key := connectorType + "\x00" + vendor

	c.mu.RLock()
	entry, ok := c.severity[key]
	c.mu.RUnlock()
	if ok && c.fresh(entry.loadedAt) {
		return entry.rows, nil
	}

	rows, err := c.store.ListEnabledSeverityMappings(ctx, connectorType, vendor)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.severity[key] = severityEntry{rows: rows, loadedAt: time.Now()}
	c.mu.Unlock()
	return rows, nil
}

// ListEnabledCategoryMappings implements Provider with caching.
func (c *Cache) ListEnabledCategoryMappings(ctx context.Context, connectorType, vendor string) ([]*CategoryMapping, error) {
	key := connectorType + "\x00" + vendor

	c.mu.RLock()
	entry, ok := c.category[key]
	c.mu.RUnlock()
	if ok && c.fresh(entry.loadedAt) {
		return entry.rows, nil
	}

	rows, err := c.store.ListEnabledCategoryMappings(ctx, connectorType, vendor)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.category[key] = categoryEntry{rows: rows, loadedAt: time.Now()}
	c.mu.Unlock()
	return rows, nil
}

// LookupPriorityRules implements Provider with caching.
func (c *Cache) LookupPriorityRules(ctx context.Context, category, severity, impact, urgency string) ([]*PriorityRule, error) {
	key := fmt.Sprintf("%s\x00%s\x00%s\x00%s", category, severity, impact, urgency)

	c.mu.RLock()
	entry, ok := c.priority[key]
	c.mu.RUnlock()
	if ok && c.fresh(entry.loadedAt) {
		return entry.rows, nil
	}

	rows, err := c.store.LookupPriorityRules(ctx, category, severity, impact, urgency)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.priority[key] = priorityEntry{rows: rows, loadedAt: time.Now()}
	c.mu.Unlock()
	return rows, nil
}

// CreateSeverityMapping writes through and invalidates.
func (c *Cache) CreateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error) {
	out, err := c.store.CreateSeverityMapping(ctx, m)
	if err == nil {
		c.Invalidate()
	}
	return out, err
}

// UpdateSeverityMapping writes through and invalidates.
func (c *Cache) UpdateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error) {
	out, err := c.store.UpdateSeverityMapping(ctx, m)
	if err == nil {
		c.Invalidate()
	}
	return out, err
}

// DeleteSeverityMapping writes through and invalidates.
func (c *Cache) DeleteSeverityMapping(ctx context.Context, id int64) error {
	err := c.store.DeleteSeverityMapping(ctx, id)
	if err == nil {
		c.Invalidate()
	}
	return err
}

// ListSeverityMappings is an administrative read; served uncached.
func (c *Cache) ListSeverityMappings(ctx context.Context, connectorType string) ([]*SeverityMapping, error) {
	return c.store.ListSeverityMappings(ctx, connectorType)
}

// CreateCategoryMapping writes through and invalidates.
func (c *Cache) CreateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error) {
	out, err := c.store.CreateCategoryMapping(ctx, m)
	if err == nil {
		c.Invalidate()
	}
	return out, err
}

// UpdateCategoryMapping writes through and invalidates.
func (c *Cache) UpdateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error) {
	out, err := c.store.UpdateCategoryMapping(ctx, m)
	if err == nil {
		c.Invalidate()
	}
	return out, err
}

// DeleteCategoryMapping writes through and invalidates.
func (c *Cache) DeleteCategoryMapping(ctx context.Context, id int64) error {
	err := c.store.DeleteCategoryMapping(ctx, id)
	if err == nil {
		c.Invalidate()
	}
	return err
}

// ListCategoryMappings is an administrative read; served uncached.
func (c *Cache) ListCategoryMappings(ctx context.Context, connectorType string) ([]*CategoryMapping, error) {
	return c.store.ListCategoryMappings(ctx, connectorType)
}

// CreatePriorityRule writes through and invalidates.
func (c *Cache) CreatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error) {
	out, err := c.store.CreatePriorityRule(ctx, r)
	if err == nil {
		c.Invalidate()
	}
	return out, err
}

// UpdatePriorityRule writes through and invalidates.
func (c *Cache) UpdatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error) {
	out, err := c.store.UpdatePriorityRule(ctx, r)
	if err == nil {
		c.Invalidate()
	}
	return out, err
}

// DeletePriorityRule writes through and invalidates.
func (c *Cache) DeletePriorityRule(ctx context.Context, id int64) error {
	err := c.store.DeletePriorityRule(ctx, id)
	if err == nil {
		c.Invalidate()
	}
	return err
}

// ListPriorityRules is an administrative read; served uncached.
func (c *Cache) ListPriorityRules(ctx context.Context) ([]*PriorityRule, error) {
	return c.store.ListPriorityRules(ctx)
}

// Ensure Cache implements Store
var _ Store = (*Cache)(nil)
