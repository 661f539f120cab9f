package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrid/alert-core/internal/alert"
)

func newStoredAlert(t *testing.T, s *InMemoryAlertStore, fingerprint string) *alert.Alert {
	t.Helper()
	now := time.Now()
	a, err := s.Create(context.Background(), &alert.Alert{
		ConnectorType:   "snmp",
		DeviceIP:        "10.0.0.1",
		AlertType:       "linkDown",
		SourceField:     alert.SourceFieldStatus,
		Severity:        alert.SeverityMajor,
		Category:        alert.CategoryNetwork,
		Priority:        alert.PriorityP2,
		Status:          alert.StatusActive,
		Fingerprint:     fingerprint,
		OccurrenceCount: 1,
		OccurredAt:      now,
		LastSeenAt:      now,
	})
	require.NoError(t, err)
	return a
}

func TestCreateAssignsIDAndVersion(t *testing.T) {
	s := NewInMemoryAlertStore()
	a := newStoredAlert(t, s, "fp-1")

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, int64(1), a.Version)
}

func TestCreateRejectsDuplicateActiveFingerprint(t *testing.T) {
	s := NewInMemoryAlertStore()
	newStoredAlert(t, s, "fp-1")

	_, err := s.Create(context.Background(), &alert.Alert{
		Status:      alert.StatusActive,
		Fingerprint: "fp-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestGetByIDNotFound(t *testing.T) {
	s := NewInMemoryAlertStore()
	_, err := s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, alert.ErrNotFound)
}

func TestGetActiveByFingerprint(t *testing.T) {
	s := NewInMemoryAlertStore()
	ctx := context.Background()

	missing, err := s.GetActiveByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	a := newStoredAlert(t, s, "fp-1")
	found, err := s.GetActiveByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)

	// Resolving frees the fingerprint.
	a.Status = alert.StatusResolved
	_, err = s.Update(ctx, a)
	require.NoError(t, err)

	gone, err := s.GetActiveByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUpdateIncrementsVersion(t *testing.T) {
	s := NewInMemoryAlertStore()
	a := newStoredAlert(t, s, "fp-1")

	a.OccurrenceCount = 2
	updated, err := s.Update(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 2, updated.OccurrenceCount)
}

func TestUpdateVersionConflict(t *testing.T) {
	s := NewInMemoryAlertStore()
	a := newStoredAlert(t, s, "fp-1")

	first := a.Clone()
	first.OccurrenceCount = 2
	_, err := s.Update(context.Background(), first)
	require.NoError(t, err)

	stale := a.Clone()
	stale.OccurrenceCount = 5
	_, err = s.Update(context.Background(), stale)
	assert.ErrorIs(t, err, alert.ErrVersionConflict)
}

func TestUpdateNotFound(t *testing.T) {
	s := NewInMemoryAlertStore()
	_, err := s.Update(context.Background(), &alert.Alert{ID: uuid.New(), Version: 1})
	assert.ErrorIs(t, err, alert.ErrNotFound)
}

func TestStoredAlertsAreIsolatedFromCallers(t *testing.T) {
	s := NewInMemoryAlertStore()
	a := newStoredAlert(t, s, "fp-1")

	a.Title = "mutated by caller"

	stored, err := s.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated by caller", stored.Title)
}

func TestListFiltersAndOrders(t *testing.T) {
	s := NewInMemoryAlertStore()
	ctx := context.Background()

	older := newStoredAlert(t, s, "fp-1")
	time.Sleep(time.Millisecond)
	newer := newStoredAlert(t, s, "fp-2")

	newer.Severity = alert.SeverityCritical
	newer, err := s.Update(ctx, newer)
	require.NoError(t, err)

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	critical, err := s.List(ctx, ListFilter{Severity: alert.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, newer.ID, critical[0].ID)

	none, err := s.List(ctx, ListFilter{ConnectorType: "http"})
	require.NoError(t, err)
	assert.Empty(t, none)

	paged, err := s.List(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, older.ID, paged[0].ID)

	past, err := s.List(ctx, ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}
