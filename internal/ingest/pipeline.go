// Package ingest runs raw alerts through normalization, prioritization and
// deduplication, producing canonical alert records.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/dedup"
	"github.com/opsgrid/alert-core/internal/metrics"
	"github.com/opsgrid/alert-core/internal/normalize"
	"github.com/opsgrid/alert-core/internal/priority"
)

// Pipeline is the ingestion entry point used by the HTTP layer and by any
// in-process connector.
type Pipeline struct {
	normalizer  *normalize.Normalizer
	prioritizer *priority.Prioritizer
	dedup       *dedup.Deduplicator
	logger      zerolog.Logger
}

// New creates a Pipeline.
func New(n *normalize.Normalizer, p *priority.Prioritizer, d *dedup.Deduplicator, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		normalizer:  n,
		prioritizer: p,
		dedup:       d,
		logger:      logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest validates the raw alert, normalizes and prioritizes it, then hands
// the candidate to the deduplicator. Returns the stored alert and whether a
// new row was created.
func (p *Pipeline) Ingest(ctx context.Context, raw *alert.RawAlert) (*alert.Alert, bool, error) {
	if err := validateRaw(raw); err != nil {
		return nil, false, err
	}

	start := time.Now()
	metrics.RawAlertsReceived.WithLabelValues(raw.ConnectorType).Inc()

	norm, err := p.normalizer.Normalize(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	if norm.SeverityMapping == nil {
		metrics.NormalizationFallbacks.WithLabelValues(raw.ConnectorType, "severity").Inc()
	}
	if norm.CategoryMapping == nil {
		metrics.NormalizationFallbacks.WithLabelValues(raw.ConnectorType, "category").Inc()
	}

	prio := p.prioritizer.Prioritize(ctx, priority.Input{
		Category: norm.Category,
		Severity: norm.Severity,
		Impact:   raw.Impact,
		Urgency:  raw.Urgency,
	})

	candidate := buildCandidate(raw, norm, prio)

	stored, created, err := p.dedup.Ingest(ctx, candidate)
	if err != nil {
		return nil, false, err
	}

	metrics.IngestDuration.WithLabelValues(raw.ConnectorType).Observe(time.Since(start).Seconds())
	return stored, created, nil
}

func validateRaw(raw *alert.RawAlert) error {
	if raw == nil {
		return fmt.Errorf("%w: raw alert is required", alert.ErrValidation)
	}
	if raw.ConnectorType == "" {
		return fmt.Errorf("%w: connector type is required", alert.ErrValidation)
	}
	if raw.DeviceIP == "" {
		return fmt.Errorf("%w: device ip is required", alert.ErrValidation)
	}
	if raw.AlertType == "" {
		return fmt.Errorf("%w: alert type is required", alert.ErrValidation)
	}
	if len(raw.Observations) == 0 {
		return fmt.Errorf("%w: at least one observation is required", alert.ErrValidation)
	}
	for _, obs := range raw.Observations {
		if !obs.Field.Valid() {
			return fmt.Errorf("%w: invalid observation field %q", alert.ErrValidation, obs.Field)
		}
	}
	if raw.Impact != "" && !raw.Impact.Valid() {
		return fmt.Errorf("%w: invalid impact %q", alert.ErrValidation, raw.Impact)
	}
	if raw.Urgency != "" && !raw.Urgency.Valid() {
		return fmt.Errorf("%w: invalid urgency %q", alert.ErrValidation, raw.Urgency)
	}
	return nil
}

func buildCandidate(raw *alert.RawAlert, norm *normalize.Result, prio priority.Result) *alert.Alert {
	title := raw.Title
	if title == "" {
		title = fmt.Sprintf("%s %s on %s", raw.AlertType, norm.Severity, deviceLabel(raw))
	}

	// The primary observation identifies the condition. The fingerprint
	// must not depend on which mapping row matched, or a rule-table edit
	// would re-fingerprint an ongoing condition.
	primary := raw.Observations[0]

	return &alert.Alert{
		ConnectorType: raw.ConnectorType,
		Vendor:        raw.Vendor,
		DeviceIP:      raw.DeviceIP,
		DeviceName:    raw.DeviceName,
		AlertType:     raw.AlertType,
		SourceField:   primary.Field,
		SourceValue:   primary.Value,
		Severity:      norm.Severity,
		Category:      norm.Category,
		Priority:      prio.Priority,
		Impact:        prio.Impact,
		Urgency:       prio.Urgency,
		Title:         title,
		Description:   raw.Description,
		Message:       raw.Message,
		RawData:       raw.RawData,
		Fingerprint: dedup.Fingerprint(
			raw.ConnectorType, raw.Vendor, raw.DeviceIP, raw.AlertType, primary.Field),
	}
}

func deviceLabel(raw *alert.RawAlert) string {
	if raw.DeviceName != "" {
		return raw.DeviceName
	}
	return raw.DeviceIP
}
