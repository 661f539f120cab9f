// Package priority derives an ITIL-style P1..P5 priority from canonical
// severity, category and business impact/urgency via the priority rule table.
package priority

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/rule"
)

// Input carries one prioritization request. Impact and Urgency default to
// medium when the connector did not supply them.
type Input struct {
	Category alert.Category
	Severity alert.Severity
	Impact   alert.ImpactUrgency
	Urgency  alert.ImpactUrgency
}

// Result is the outcome of one prioritization. Rule is nil when the
// severity-derived fallback was applied.
type Result struct {
	Priority alert.Priority
	Impact   alert.ImpactUrgency
	Urgency  alert.ImpactUrgency
	Rule     *rule.PriorityRule
}

// Prioritizer looks up priority rules and applies the severity fallback.
// Prioritize never fails to produce a priority.
type Prioritizer struct {
	rules    rule.Provider
	recorder audit.Recorder
	logger   zerolog.Logger
}

// New creates a Prioritizer reading rules from the given provider.
func New(rules rule.Provider, recorder audit.Recorder, logger zerolog.Logger) *Prioritizer {
	return &Prioritizer{
		rules:    rules,
		recorder: recorder,
		logger:   logger.With().Str("component", "prioritizer").Logger(),
	}
}

// Prioritize resolves the priority for the given input. An exact rule match
// wins; multiple enabled matches (a data-entry error) resolve to the lowest
// id and are flagged via audit; no match falls back to the severity default.
func (p *Prioritizer) Prioritize(ctx context.Context, in Input) Result {
	impact := in.Impact
	if impact == "" {
		impact = alert.ImpactUrgencyMedium
	}
	urgency := in.Urgency
	if urgency == "" {
		urgency = alert.ImpactUrgencyMedium
	}

	result := Result{Impact: impact, Urgency: urgency}

	rules, err := p.rules.LookupPriorityRules(ctx,
		string(in.Category), string(in.Severity), string(impact), string(urgency))
	if err != nil {
		// A storage failure on lookup must not halt ingestion; apply the
		// fallback and surface the problem through the log.
		p.logger.Error().Err(err).
			Str("category", string(in.Category)).
			Str("severity", string(in.Severity)).
			Msg("priority rule lookup failed, applying severity fallback")
		result.Priority = FallbackPriority(in.Severity)
		return result
	}

	switch {
	case len(rules) == 0:
		result.Priority = FallbackPriority(in.Severity)

	case len(rules) == 1:
		result.Rule = rules[0]
		result.Priority = rules[0].Priority

	default:
		// Rules are ordered by id ascending; the earliest-created wins.
		result.Rule = rules[0]
		result.Priority = rules[0].Priority
		p.recordAmbiguity(ctx, in, impact, urgency, rules)
	}

	return result
}

func (p *Prioritizer) recordAmbiguity(ctx context.Context, in Input, impact, urgency alert.ImpactUrgency, rules []*rule.PriorityRule) {
	ids := ""
	for i, r := range rules {
		if i > 0 {
			ids += ","
		}
		ids += strconv.FormatInt(r.ID, 10)
	}
	details := map[string]string{
		"category":   string(in.Category),
		"severity":   string(in.Severity),
		"impact":     string(impact),
		"urgency":    string(urgency),
		"matchedIds": ids,
		"selectedId": strconv.FormatInt(rules[0].ID, 10),
	}
	if err := p.recorder.Record(ctx, audit.NewEvent(uuid.Nil, audit.EventPriorityRuleAmbiguous, true, details)); err != nil {
		p.logger.Warn().Err(err).Msg("failed to record priority rule ambiguity")
	}
}

// FallbackPriority maps a canonical severity to its default priority, used
// when no priority rule matches.
func FallbackPriority(severity alert.Severity) alert.Priority {
	switch severity {
	case alert.SeverityCritical:
		return alert.PriorityP1
	case alert.SeverityMajor:
		return alert.PriorityP2
	case alert.SeverityMinor:
		return alert.PriorityP3
	case alert.SeverityWarning:
		return alert.PriorityP4
	default: // info, clear
		return alert.PriorityP5
	}
}
