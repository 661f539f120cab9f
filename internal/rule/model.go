// Package rule provides the mapping and priority rule tables consumed by the
// normalizer and prioritizer, with Postgres and in-memory stores and a
// versioned read cache.
package rule

import (
	"fmt"
	"time"

	"github.com/opsgrid/alert-core/internal/alert"
)

// SeverityMapping maps one connector-specific (source_field, source_value)
// pair to a canonical severity. Priority is the selection rank: among all
// matching enabled rows the highest priority wins.
type SeverityMapping struct {
	ID             int64              `json:"id"`
	ConnectorType  string             `json:"connectorType"`
	Vendor         string             `json:"vendor,omitempty"`
	SourceField    alert.SourceField  `json:"sourceField"`
	SourceValue    string             `json:"sourceValue"`
	TargetSeverity alert.Severity     `json:"targetSeverity"`
	Priority       int                `json:"priority"`
	Enabled        bool               `json:"enabled"`
	Description    string             `json:"description,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// CategoryMapping is the category counterpart of SeverityMapping.
type CategoryMapping struct {
	ID             int64              `json:"id"`
	ConnectorType  string             `json:"connectorType"`
	Vendor         string             `json:"vendor,omitempty"`
	SourceField    alert.SourceField  `json:"sourceField"`
	SourceValue    string             `json:"sourceValue"`
	TargetCategory alert.Category     `json:"targetCategory"`
	Priority       int                `json:"priority"`
	Enabled        bool               `json:"enabled"`
	Description    string             `json:"description,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// PriorityRule maps a (category, severity, impact, urgency) 4-tuple to an
// ITIL priority. At most one enabled rule should match a tuple; ties are
// resolved deterministically by the prioritizer.
type PriorityRule struct {
	ID        int64               `json:"id"`
	Category  alert.Category      `json:"category"`
	Severity  alert.Severity      `json:"severity"`
	Impact    alert.ImpactUrgency `json:"impact"`
	Urgency   alert.ImpactUrgency `json:"urgency"`
	Priority  alert.Priority      `json:"priority"`
	Enabled   bool                `json:"enabled"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Validate rejects severity mapping writes carrying values outside their
// enums. Nothing is persisted on failure.
func (m *SeverityMapping) Validate() error {
	if m.ConnectorType == "" {
		return fmt.Errorf("%w: connector type is required", alert.ErrValidation)
	}
	if !m.SourceField.Valid() {
		return fmt.Errorf("%w: invalid source field %q", alert.ErrValidation, m.SourceField)
	}
	if m.SourceValue == "" {
		return fmt.Errorf("%w: source value is required", alert.ErrValidation)
	}
	if !m.TargetSeverity.Valid() {
		return fmt.Errorf("%w: invalid target severity %q", alert.ErrValidation, m.TargetSeverity)
	}
	return nil
}

// Validate rejects category mapping writes carrying values outside their enums.
func (m *CategoryMapping) Validate() error {
	if m.ConnectorType == "" {
		return fmt.Errorf("%w: connector type is required", alert.ErrValidation)
	}
	if !m.SourceField.Valid() {
		return fmt.Errorf("%w: invalid source field %q", alert.ErrValidation, m.SourceField)
	}
	if m.SourceValue == "" {
		return fmt.Errorf("%w: source value is required", alert.ErrValidation)
	}
	if !m.TargetCategory.Valid() {
		return fmt.Errorf("%w: invalid target category %q", alert.ErrValidation, m.TargetCategory)
	}
	return nil
}

// Validate rejects priority rule writes carrying values outside their enums.
func (r *PriorityRule) Validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: invalid category %q", alert.ErrValidation, r.Category)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: invalid severity %q", alert.ErrValidation, r.Severity)
	}
	if !r.Impact.Valid() {
		return fmt.Errorf("%w: invalid impact %q", alert.ErrValidation, r.Impact)
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("%w: invalid urgency %q", alert.ErrValidation, r.Urgency)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %q", alert.ErrValidation, r.Priority)
	}
	return nil
}

// MatchesVendor reports whether a rule scoped to ruleVendor applies to an
// alert carrying alertVendor. A rule with no vendor applies to any alert.
func MatchesVendor(ruleVendor, alertVendor string) bool {
	return ruleVendor == "" || ruleVendor == alertVendor
}
