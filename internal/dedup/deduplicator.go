package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/lock"
	"github.com/opsgrid/alert-core/internal/metrics"
	"github.com/opsgrid/alert-core/internal/store"
)

// occurrenceRetries bounds the re-read loop when an occurrence update races
// a lifecycle mutation on the same row.
const occurrenceRetries = 3

// Deduplicator decides whether an incoming normalized alert is a brand-new
// condition or a repeat of an existing one, and upserts accordingly. The
// find-or-create step runs under a per-fingerprint lock.
type Deduplicator struct {
	alerts   store.AlertStore
	locker   lock.FingerprintLocker
	recorder audit.Recorder
	logger   zerolog.Logger
}

// New creates a Deduplicator.
func New(alerts store.AlertStore, locker lock.FingerprintLocker, recorder audit.Recorder, logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		alerts:   alerts,
		locker:   locker,
		recorder: recorder,
		logger:   logger.With().Str("component", "deduplicator").Logger(),
	}
}

// Ingest upserts the candidate alert. The candidate carries canonical
// severity/category/priority and a computed fingerprint; its status,
// occurrence count and timestamps are owned by this method.
//
// Returns the stored alert and whether a new row was created.
func (d *Deduplicator) Ingest(ctx context.Context, candidate *alert.Alert) (*alert.Alert, bool, error) {
	if candidate.Fingerprint == "" {
		return nil, false, fmt.Errorf("%w: fingerprint is required", alert.ErrValidation)
	}

	release, err := d.locker.Lock(ctx, candidate.Fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("lock fingerprint: %w", err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		existing, err := d.alerts.GetActiveByFingerprint(ctx, candidate.Fingerprint)
		if err != nil {
			return nil, false, fmt.Errorf("%w: find by fingerprint: %v", alert.ErrPersistence, err)
		}

		if existing == nil {
			created, err := d.create(ctx, candidate)
			if err == nil {
				return created, true, nil
			}
			// Another instance won the insert race; the partial unique
			// index rejected ours. Re-read and take the occurrence path.
			if errors.Is(err, store.ErrDuplicateActive) && attempt < occurrenceRetries {
				continue
			}
			return nil, false, err
		}

		updated, err := d.recordOccurrence(ctx, existing, candidate)
		if err == nil {
			return updated, false, nil
		}
		// A lifecycle operation slipped in between read and write. The row
		// may even be resolved now, so restart from the lookup.
		if errors.Is(err, alert.ErrVersionConflict) && attempt < occurrenceRetries {
			continue
		}
		return nil, false, err
	}
}

func (d *Deduplicator) create(ctx context.Context, candidate *alert.Alert) (*alert.Alert, error) {
	now := time.Now()
	a := candidate.Clone()
	a.Status = alert.StatusActive
	a.OccurrenceCount = 1
	a.OccurredAt = now
	a.LastSeenAt = now
	a.AcknowledgedAt = nil
	a.ResolvedAt = nil

	created, err := d.alerts.Create(ctx, a)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateActive) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create alert: %v", alert.ErrPersistence, err)
	}

	metrics.AlertsCreated.WithLabelValues(created.ConnectorType, string(created.Severity)).Inc()
	d.logger.Info().
		Str("alertId", created.ID.String()).
		Str("fingerprint", created.Fingerprint).
		Str("severity", string(created.Severity)).
		Str("priority", string(created.Priority)).
		Msg("new alert created")
	return created, nil
}

// recordOccurrence folds a repeat report into the existing alert: the
// occurrence counter increments, last-seen moves forward, and classification
// changes are applied and audited. Status and occurred-at are untouched.
func (d *Deduplicator) recordOccurrence(ctx context.Context, existing, candidate *alert.Alert) (*alert.Alert, error) {
	a := existing.Clone()
	a.OccurrenceCount++
	a.LastSeenAt = time.Now()
	a.SourceValue = candidate.SourceValue
	a.Message = candidate.Message
	if candidate.RawData != nil {
		a.RawData = candidate.RawData
	}

	severityChanged := candidate.Severity != existing.Severity
	priorityChanged := candidate.Priority != existing.Priority
	if severityChanged {
		a.Severity = candidate.Severity
	}
	if candidate.Category != existing.Category {
		a.Category = candidate.Category
	}
	if priorityChanged {
		a.Priority = candidate.Priority
	}

	updated, err := d.alerts.Update(ctx, a)
	if err != nil {
		if errors.Is(err, alert.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update alert: %v", alert.ErrPersistence, err)
	}

	metrics.AlertsDeduplicated.WithLabelValues(updated.ConnectorType).Inc()

	d.recordAudit(ctx, updated, audit.EventDeduplicated, map[string]string{
		"fingerprint":     updated.Fingerprint,
		"occurrenceCount": strconv.Itoa(updated.OccurrenceCount),
	})
	if severityChanged {
		d.recordAudit(ctx, updated, audit.EventSeverityChanged, map[string]string{
			"oldSeverity": string(existing.Severity),
			"newSeverity": string(updated.Severity),
		})
	}
	if priorityChanged {
		d.recordAudit(ctx, updated, audit.EventPriorityChanged, map[string]string{
			"oldPriority": string(existing.Priority),
			"newPriority": string(updated.Priority),
		})
	}

	return updated, nil
}

func (d *Deduplicator) recordAudit(ctx context.Context, a *alert.Alert, eventType audit.EventType, details map[string]string) {
	if err := d.recorder.Record(ctx, audit.NewEvent(a.ID, eventType, true, details)); err != nil {
		d.logger.Warn().Err(err).Str("eventType", string(eventType)).Msg("failed to record audit event")
	}
}
