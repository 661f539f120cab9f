// Package store provides interfaces and implementations for alert persistence.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opsgrid/alert-core/internal/alert"
)

// ErrDuplicateActive is returned by Create when another non-resolved alert
// with the same fingerprint already exists. The deduplicator treats this as
// a lost race and re-reads.
var ErrDuplicateActive = errors.New("active alert with fingerprint already exists")

// ListFilter narrows a List call. Zero values mean no filtering.
type ListFilter struct {
	Status        alert.Status
	Severity      alert.Severity
	ConnectorType string
	Limit         int
	Offset        int
}

// AlertStore defines the persistence contract for alert records.
//
// Alert rows are created by the deduplicator and mutated only through
// Update, which enforces optimistic concurrency on the Version field.
type AlertStore interface {
	// Create inserts a new alert and returns it with id and version set.
	// Returns ErrDuplicateActive when a non-resolved alert with the same
	// fingerprint exists.
	Create(ctx context.Context, a *alert.Alert) (*alert.Alert, error)

	// GetByID retrieves an alert by id. Returns alert.ErrNotFound when
	// no such alert exists.
	GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error)

	// GetActiveByFingerprint retrieves the one non-resolved alert with the
	// given fingerprint, or nil when every match is resolved or none exists.
	GetActiveByFingerprint(ctx context.Context, fingerprint string) (*alert.Alert, error)

	// Update persists the alert when its Version matches the stored row,
	// then increments the version. Returns alert.ErrVersionConflict on a
	// lost update and alert.ErrNotFound when the row is gone.
	Update(ctx context.Context, a *alert.Alert) (*alert.Alert, error)

	// List retrieves alerts matching the filter, newest last-seen first.
	List(ctx context.Context, filter ListFilter) ([]*alert.Alert, error)
}
