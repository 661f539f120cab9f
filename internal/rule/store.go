package rule

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a referenced rule row does not exist.
var ErrNotFound = errors.New("rule not found")

// Provider is the read-side contract consumed by the normalizer and
// prioritizer on every evaluation. Implementations return enabled rows only.
type Provider interface {
	// ListEnabledSeverityMappings returns enabled severity mappings for the
	// connector type whose vendor scope admits the given vendor, ordered by
	// priority descending then id ascending.
	ListEnabledSeverityMappings(ctx context.Context, connectorType, vendor string) ([]*SeverityMapping, error)

	// ListEnabledCategoryMappings is the category counterpart.
	ListEnabledCategoryMappings(ctx context.Context, connectorType, vendor string) ([]*CategoryMapping, error)

	// LookupPriorityRules returns all enabled priority rules matching the
	// exact 4-tuple, ordered by id ascending. More than one row means a
	// data-entry error the caller resolves deterministically.
	LookupPriorityRules(ctx context.Context, category, severity, impact, urgency string) ([]*PriorityRule, error)
}

// Store is the full persistence contract, including the administrative
// write surface. Writes validate enum membership before touching storage.
type Store interface {
	Provider

	CreateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error)
	UpdateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error)
	DeleteSeverityMapping(ctx context.Context, id int64) error
	ListSeverityMappings(ctx context.Context, connectorType string) ([]*SeverityMapping, error)

	CreateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error)
	UpdateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error)
	DeleteCategoryMapping(ctx context.Context, id int64) error
	ListCategoryMappings(ctx context.Context, connectorType string) ([]*CategoryMapping, error)

	CreatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error)
	UpdatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error)
	DeletePriorityRule(ctx context.Context, id int64) error
	ListPriorityRules(ctx context.Context) ([]*PriorityRule, error)
}
