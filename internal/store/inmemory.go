package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/opsgrid/alert-core/internal/alert"
)

// InMemoryAlertStore is an in-memory implementation of AlertStore, used in
// tests and single-node deployments without Postgres.
type InMemoryAlertStore struct {
	mu       sync.RWMutex
	alerts   map[uuid.UUID]*alert.Alert
	activeFP map[string]uuid.UUID // fingerprint -> non-resolved alert id
}

// NewInMemoryAlertStore creates an empty in-memory alert store.
func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{
		alerts:   make(map[uuid.UUID]*alert.Alert),
		activeFP: make(map[string]uuid.UUID),
	}
}

// Create implements AlertStore.
func (s *InMemoryAlertStore) Create(ctx context.Context, a *alert.Alert) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activeFP[a.Fingerprint]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateActive, a.Fingerprint)
	}

	cp := a.Clone()
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Version = 1
	s.alerts[cp.ID] = cp
	if !cp.Status.Terminal() {
		s.activeFP[cp.Fingerprint] = cp.ID
	}
	return cp.Clone(), nil
}

// GetByID implements AlertStore.
func (s *InMemoryAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", alert.ErrNotFound, id)
	}
	return a.Clone(), nil
}

// GetActiveByFingerprint implements AlertStore.
func (s *InMemoryAlertStore) GetActiveByFingerprint(ctx context.Context, fingerprint string) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.activeFP[fingerprint]
	if !ok {
		return nil, nil
	}
	return s.alerts[id].Clone(), nil
}

// Update implements AlertStore with an optimistic version check.
func (s *InMemoryAlertStore) Update(ctx context.Context, a *alert.Alert) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.alerts[a.ID]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", alert.ErrNotFound, a.ID)
	}
	if existing.Version != a.Version {
		return nil, fmt.Errorf("%w: alert %s version %d, have %d",
			alert.ErrVersionConflict, a.ID, existing.Version, a.Version)
	}

	cp := a.Clone()
	cp.Version = existing.Version + 1
	s.alerts[cp.ID] = cp

	if cp.Status.Terminal() {
		// The fingerprint is free for a new incident once resolved.
		if s.activeFP[cp.Fingerprint] == cp.ID {
			delete(s.activeFP, cp.Fingerprint)
		}
	} else {
		s.activeFP[cp.Fingerprint] = cp.ID
	}
	return cp.Clone(), nil
}

// List implements AlertStore, newest last-seen first.
func (s *InMemoryAlertStore) List(ctx context.Context, filter ListFilter) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Alert
	for _, a := range s.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.ConnectorType != "" && a.ConnectorType != filter.ConnectorType {
			continue
		}
		out = append(out, a.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Ensure InMemoryAlertStore implements AlertStore
var _ AlertStore = (*InMemoryAlertStore)(nil)
