package rule

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store, used in tests and
// single-node deployments without Postgres.
type InMemoryStore struct {
	mu sync.RWMutex

	severity map[int64]*SeverityMapping
	category map[int64]*CategoryMapping
	priority map[int64]*PriorityRule
	nextID   int64
}

// NewInMemoryStore creates an empty in-memory rule store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		severity: make(map[int64]*SeverityMapping),
		category: make(map[int64]*CategoryMapping),
		priority: make(map[int64]*PriorityRule),
	}
}

func (s *InMemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

// ListEnabledSeverityMappings implements Provider.
func (s *InMemoryStore) ListEnabledSeverityMappings(ctx context.Context, connectorType, vendor string) ([]*SeverityMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*SeverityMapping
	for _, m := range s.severity {
		if m.Enabled && m.ConnectorType == connectorType && MatchesVendor(m.Vendor, vendor) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortSeverityMappings(out)
	return out, nil
}

// ListEnabledCategoryMappings implements Provider.
func (s *InMemoryStore) ListEnabledCategoryMappings(ctx context.Context, connectorType, vendor string) ([]*CategoryMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*CategoryMapping
	for _, m := range s.category {
		if m.Enabled && m.ConnectorType == connectorType && MatchesVendor(m.Vendor, vendor) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortCategoryMappings(out)
	return out, nil
}

// LookupPriorityRules implements Provider.
func (s *InMemoryStore) LookupPriorityRules(ctx context.Context, category, severity, impact, urgency string) ([]*PriorityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PriorityRule
	for _, r := range s.priority {
		if r.Enabled &&
			string(r.Category) == category &&
			string(r.Severity) == severity &&
			string(r.Impact) == impact &&
			string(r.Urgency) == urgency {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSeverityMapping validates and stores a new severity mapping.
func (s *InMemoryStore) CreateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	cp.ID = s.allocID()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.severity[cp.ID] = &cp

	out := cp
	return &out, nil
}

// UpdateSeverityMapping validates and replaces an existing severity mapping.
func (s *InMemoryStore) UpdateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.severity[m.ID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *m
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.severity[cp.ID] = &cp

	out := cp
	return &out, nil
}

// DeleteSeverityMapping removes a severity mapping.
func (s *InMemoryStore) DeleteSeverityMapping(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.severity[id]; !ok {
		return ErrNotFound
	}
	delete(s.severity, id)
	return nil
}

// ListSeverityMappings returns all severity mappings, optionally filtered by
// connector type, in display order (priority descending).
func (s *InMemoryStore) ListSeverityMappings(ctx context.Context, connectorType string) ([]*SeverityMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*SeverityMapping
	for _, m := range s.severity {
		if connectorType == "" || m.ConnectorType == connectorType {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortSeverityMappings(out)
	return out, nil
}

// CreateCategoryMapping validates and stores a new category mapping.
func (s *InMemoryStore) CreateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	cp.ID = s.allocID()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.category[cp.ID] = &cp

	out := cp
	return &out, nil
}

// UpdateCategoryMapping validates and replaces an existing category mapping.
func (s *InMemoryStore) UpdateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.category[m.ID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *m
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.category[cp.ID] = &cp

	out := cp
	return &out, nil
}

// DeleteCategoryMapping removes a category mapping.
func (s *InMemoryStore) DeleteCategoryMapping(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.category[id]; !ok {
		return ErrNotFound
	}
	delete(s.category, id)
	return nil
}

// ListCategoryMappings returns all category mappings, optionally filtered by
// connector type, in display order.
func (s *InMemoryStore) ListCategoryMappings(ctx context.Context, connectorType string) ([]*CategoryMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*CategoryMapping
	for _, m := range s.category {
		if connectorType == "" || m.ConnectorType == connectorType {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortCategoryMappings(out)
	return out, nil
}

// CreatePriorityRule validates and stores a new priority rule.
func (s *InMemoryStore) CreatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	cp.ID = s.allocID()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.priority[cp.ID] = &cp

	out := cp
	return &out, nil
}

// UpdatePriorityRule validates and replaces an existing priority rule.
func (s *InMemoryStore) UpdatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.priority[r.ID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *r
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.priority[cp.ID] = &cp

	out := cp
	return &out, nil
}

// DeletePriorityRule removes a priority rule.
func (s *InMemoryStore) DeletePriorityRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.priority[id]; !ok {
		return ErrNotFound
	}
	delete(s.priority, id)
	return nil
}

// ListPriorityRules returns all priority rules ordered by id.
func (s *InMemoryStore) ListPriorityRules(ctx context.Context) ([]*PriorityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PriorityRule
	for _, r := range s.priority {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortSeverityMappings(ms []*SeverityMapping) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Priority != ms[j].Priority {
			return ms[i].Priority > ms[j].Priority
		}
		return ms[i].ID < ms[j].ID
	})
}

func sortCategoryMappings(ms []*CategoryMapping) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Priority != ms[j].Priority {
			return ms[i].Priority > ms[j].Priority
		}
		return ms[i].ID < ms[j].ID
	})
}

// Ensure InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)
