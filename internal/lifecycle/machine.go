// Package lifecycle governs alert status transitions and stamps their
// timestamps.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/metrics"
	"github.com/opsgrid/alert-core/internal/store"
)

// transitions lists the legal moves. resolved is terminal: a later
// occurrence of the same fingerprint starts a brand-new alert rather than
// reopening the resolved one.
var transitions = map[alert.Status][]alert.Status{
	alert.StatusActive:       {alert.StatusAcknowledged, alert.StatusSuppressed, alert.StatusResolved},
	alert.StatusAcknowledged: {alert.StatusResolved},
	alert.StatusSuppressed:   {alert.StatusResolved},
	alert.StatusResolved:     {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to alert.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine applies lifecycle operations to stored alerts.
type Machine struct {
	alerts   store.AlertStore
	recorder audit.Recorder
	logger   zerolog.Logger
}

// New creates a lifecycle Machine.
func New(alerts store.AlertStore, recorder audit.Recorder, logger zerolog.Logger) *Machine {
	return &Machine{
		alerts:   alerts,
		recorder: recorder,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Acknowledge moves an active alert to acknowledged and stamps
// acknowledged_at. Any other starting state is an invalid transition and
// leaves the alert unchanged.
func (m *Machine) Acknowledge(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	return m.transition(ctx, id, alert.StatusAcknowledged, func(a *alert.Alert, now time.Time) {
		a.AcknowledgedAt = &now
	})
}

// Resolve moves an alert from any non-terminal state to resolved and stamps
// resolved_at. Resolved is terminal.
func (m *Machine) Resolve(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	return m.transition(ctx, id, alert.StatusResolved, func(a *alert.Alert, now time.Time) {
		a.ResolvedAt = &now
	})
}

// Suppress administratively mutes an active alert.
func (m *Machine) Suppress(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	return m.transition(ctx, id, alert.StatusSuppressed, nil)
}

func (m *Machine) transition(ctx context.Context, id uuid.UUID, to alert.Status, stamp func(*alert.Alert, time.Time)) (*alert.Alert, error) {
	a, err := m.alerts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load alert: %v", alert.ErrPersistence, err)
	}

	from := a.Status
	if !CanTransition(from, to) {
		m.recordTransition(ctx, a.ID, from, to, false)
		return nil, fmt.Errorf("%w: %s -> %s for alert %s", alert.ErrInvalidTransition, from, to, id)
	}

	a.Status = to
	if stamp != nil {
		stamp(a, time.Now())
	}

	updated, err := m.alerts.Update(ctx, a)
	if err != nil {
		// A fresh occurrence bumped the version between read and write.
		// The caller re-issues the command; the status itself is unchanged.
		if errors.Is(err, alert.ErrVersionConflict) {
			return nil, err
		}
		if errors.Is(err, alert.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update alert: %v", alert.ErrPersistence, err)
	}

	metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.recordTransition(ctx, updated.ID, from, to, true)
	m.logger.Info().
		Str("alertId", updated.ID.String()).
		Str("oldStatus", string(from)).
		Str("newStatus", string(to)).
		Msg("alert status changed")

	return updated, nil
}

func (m *Machine) recordTransition(ctx context.Context, id uuid.UUID, from, to alert.Status, success bool) {
	details := map[string]string{
		"oldStatus": string(from),
		"newStatus": string(to),
	}
	if err := m.recorder.Record(ctx, audit.NewEvent(id, audit.EventStatusChanged, success, details)); err != nil {
		m.logger.Warn().Err(err).Msg("failed to record status change")
	}
}
