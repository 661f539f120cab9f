// Package normalize maps connector-specific status and sensor values onto
// the canonical severity and category vocabulary using the per-connector
// mapping tables.
package normalize

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/rule"
)

// DefaultSeverity and DefaultCategory are the safe fallbacks applied when no
// enabled mapping matches any observation. Availability of alerting must not
// depend on rule-table completeness.
const (
	DefaultSeverity = alert.SeverityInfo
	DefaultCategory = alert.CategoryUnknown
)

// Result is the outcome of one normalization, including which mapping rows
// were used so the decision can be audited.
type Result struct {
	Severity alert.Severity
	Category alert.Category

	// SeverityMapping and CategoryMapping reference the selected rows.
	// Nil means no rule matched and the default was applied.
	SeverityMapping *rule.SeverityMapping
	CategoryMapping *rule.CategoryMapping

	// MatchedField/MatchedValue identify the observation the severity
	// mapping matched on; they fall back to the first observation when no
	// rule matched.
	MatchedField alert.SourceField
	MatchedValue string
}

// Normalizer evaluates mapping rules against raw alert observations.
type Normalizer struct {
	rules    rule.Provider
	recorder audit.Recorder
	logger   zerolog.Logger
}

// New creates a Normalizer reading rules from the given provider.
func New(rules rule.Provider, recorder audit.Recorder, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		rules:    rules,
		recorder: recorder,
		logger:   logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize selects the best-matching enabled severity and category mappings
// for the raw alert and returns the canonical result. Selection is
// deterministic: highest priority wins, ties prefer a vendor-specific rule
// over a vendor-agnostic one, then the lowest rule id.
func (n *Normalizer) Normalize(ctx context.Context, raw *alert.RawAlert) (*Result, error) {
	if raw.ConnectorType == "" {
		return nil, fmt.Errorf("%w: connector type is required", alert.ErrValidation)
	}
	if len(raw.Observations) == 0 {
		return nil, fmt.Errorf("%w: at least one observation is required", alert.ErrValidation)
	}

	sevRows, err := n.rules.ListEnabledSeverityMappings(ctx, raw.ConnectorType, raw.Vendor)
	if err != nil {
		return nil, fmt.Errorf("%w: list severity mappings: %v", alert.ErrPersistence, err)
	}
	catRows, err := n.rules.ListEnabledCategoryMappings(ctx, raw.ConnectorType, raw.Vendor)
	if err != nil {
		return nil, fmt.Errorf("%w: list category mappings: %v", alert.ErrPersistence, err)
	}

	result := &Result{
		Severity:     DefaultSeverity,
		Category:     DefaultCategory,
		MatchedField: raw.Observations[0].Field,
		MatchedValue: raw.Observations[0].Value,
	}

	if m := selectSeverityMapping(sevRows, raw.Observations); m != nil {
		result.Severity = m.TargetSeverity
		result.SeverityMapping = m
		result.MatchedField = m.SourceField
		result.MatchedValue = m.SourceValue
	}
	if m := selectCategoryMapping(catRows, raw.Observations); m != nil {
		result.Category = m.TargetCategory
		result.CategoryMapping = m
	}

	n.recordEvaluation(ctx, raw, result)
	return result, nil
}

func (n *Normalizer) recordEvaluation(ctx context.Context, raw *alert.RawAlert, result *Result) {
	details := map[string]string{
		"connectorType": raw.ConnectorType,
		"severity":      string(result.Severity),
		"category":      string(result.Category),
	}
	if raw.Vendor != "" {
		details["vendor"] = raw.Vendor
	}
	if result.SeverityMapping != nil {
		details["severityMappingId"] = strconv.FormatInt(result.SeverityMapping.ID, 10)
	} else {
		details["severityMapping"] = "no rule matched"
	}
	if result.CategoryMapping != nil {
		details["categoryMappingId"] = strconv.FormatInt(result.CategoryMapping.ID, 10)
	} else {
		details["categoryMapping"] = "no rule matched"
	}

	if err := n.recorder.Record(ctx, audit.NewEvent(uuid.Nil, audit.EventRuleEvaluated, true, details)); err != nil {
		n.logger.Warn().Err(err).Msg("failed to record rule evaluation")
	}
}

// selectSeverityMapping picks the winning row among all candidates matching
// any observation. Match is exact and case-sensitive on source value.
func selectSeverityMapping(rows []*rule.SeverityMapping, observations []alert.Observation) *rule.SeverityMapping {
	var best *rule.SeverityMapping
	for _, m := range rows {
		if !matchesAny(m.SourceField, m.SourceValue, observations) {
			continue
		}
		if best == nil || severityMappingWins(m, best) {
			best = m
		}
	}
	return best
}

func selectCategoryMapping(rows []*rule.CategoryMapping, observations []alert.Observation) *rule.CategoryMapping {
	var best *rule.CategoryMapping
	for _, m := range rows {
		if !matchesAny(m.SourceField, m.SourceValue, observations) {
			continue
		}
		if best == nil || categoryMappingWins(m, best) {
			best = m
		}
	}
	return best
}

func matchesAny(field alert.SourceField, value string, observations []alert.Observation) bool {
	for _, obs := range observations {
		if obs.Field == field && obs.Value == value {
			return true
		}
	}
	return false
}

// severityMappingWins reports whether candidate beats current: higher
// priority first, then vendor-specific over vendor-agnostic, then lowest id.
func severityMappingWins(candidate, current *rule.SeverityMapping) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	if (candidate.Vendor != "") != (current.Vendor != "") {
		return candidate.Vendor != ""
	}
	return candidate.ID < current.ID
}

func categoryMappingWins(candidate, current *rule.CategoryMapping) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	if (candidate.Vendor != "") != (current.Vendor != "") {
		return candidate.Vendor != ""
	}
	return candidate.ID < current.ID
}
