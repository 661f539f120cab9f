package ingest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/dedup"
	"github.com/opsgrid/alert-core/internal/lock"
	"github.com/opsgrid/alert-core/internal/normalize"
	"github.com/opsgrid/alert-core/internal/priority"
	"github.com/opsgrid/alert-core/internal/rule"
	"github.com/opsgrid/alert-core/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *rule.InMemoryStore, *store.InMemoryAlertStore) {
	t.Helper()
	rules := rule.NewInMemoryStore()
	alerts := store.NewInMemoryAlertStore()
	recorder := audit.NewMemoryRecorder()
	logger := zerolog.Nop()

	n := normalize.New(rules, recorder, logger)
	p := priority.New(rules, recorder, logger)
	d := dedup.New(alerts, lock.NewKeyed(0), recorder, logger)
	return New(n, p, d, logger), rules, alerts
}

func seedRules(t *testing.T, rules *rule.InMemoryStore) {
	t.Helper()
	ctx := context.Background()

	_, err := rules.CreateSeverityMapping(ctx, &rule.SeverityMapping{
		ConnectorType:  "snmp",
		SourceField:    alert.SourceFieldStatus,
		SourceValue:    "2",
		TargetSeverity: alert.SeverityCritical,
		Enabled:        true,
	})
	require.NoError(t, err)

	_, err = rules.CreateCategoryMapping(ctx, &rule.CategoryMapping{
		ConnectorType:  "snmp",
		SourceField:    alert.SourceFieldType,
		SourceValue:    "linkDown",
		TargetCategory: alert.CategoryNetwork,
		Enabled:        true,
	})
	require.NoError(t, err)

	_, err = rules.CreatePriorityRule(ctx, &rule.PriorityRule{
		Category: alert.CategoryNetwork,
		Severity: alert.SeverityCritical,
		Impact:   alert.ImpactUrgencyMedium,
		Urgency:  alert.ImpactUrgencyMedium,
		Priority: alert.PriorityP2,
		Enabled:  true,
	})
	require.NoError(t, err)
}

func rawLinkDown() *alert.RawAlert {
	return &alert.RawAlert{
		ConnectorType: "snmp",
		Vendor:        "cisco",
		DeviceIP:      "10.0.0.1",
		DeviceName:    "core-sw-1",
		AlertType:     "linkDown",
		Observations: []alert.Observation{
			{Field: alert.SourceFieldStatus, Value: "2"},
			{Field: alert.SourceFieldType, Value: "linkDown"},
		},
	}
}

func TestIngestEndToEnd(t *testing.T) {
	p, rules, _ := newTestPipeline(t)
	seedRules(t, rules)

	stored, created, err := p.Ingest(context.Background(), rawLinkDown())
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, alert.SeverityCritical, stored.Severity)
	assert.Equal(t, alert.CategoryNetwork, stored.Category)
	assert.Equal(t, alert.PriorityP2, stored.Priority)
	assert.Equal(t, alert.ImpactUrgencyMedium, stored.Impact)
	assert.Equal(t, alert.StatusActive, stored.Status)
	assert.Equal(t, alert.SourceFieldStatus, stored.SourceField)
	assert.Equal(t, "2", stored.SourceValue)
	assert.NotEmpty(t, stored.Fingerprint)
	assert.NotEmpty(t, stored.Title)
}

func TestIngestWithoutRulesFallsBack(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	stored, created, err := p.Ingest(context.Background(), rawLinkDown())
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, normalize.DefaultSeverity, stored.Severity)
	assert.Equal(t, normalize.DefaultCategory, stored.Category)
	assert.Equal(t, alert.PriorityP5, stored.Priority)
}

func TestIngestRepeatDeduplicates(t *testing.T) {
	p, rules, _ := newTestPipeline(t)
	seedRules(t, rules)
	ctx := context.Background()

	first, created, err := p.Ingest(ctx, rawLinkDown())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := p.Ingest(ctx, rawLinkDown())
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.OccurrenceCount)
}

func TestIngestFingerprintStableAcrossRuleChanges(t *testing.T) {
	p, rules, _ := newTestPipeline(t)
	ctx := context.Background()

	first, _, err := p.Ingest(ctx, rawLinkDown())
	require.NoError(t, err)

	// A new mapping changes classification but must not re-fingerprint the
	// ongoing condition.
	seedRules(t, rules)

	second, created, err := p.Ingest(ctx, rawLinkDown())
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, alert.SeverityCritical, second.Severity)
}

func TestIngestDefaultTitle(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	raw := rawLinkDown()
	raw.Title = ""
	stored, _, err := p.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Contains(t, stored.Title, "linkDown")
	assert.Contains(t, stored.Title, "core-sw-1")
}

func TestIngestValidation(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*alert.RawAlert)
	}{
		{"nil raw", nil},
		{"missing connector type", func(r *alert.RawAlert) { r.ConnectorType = "" }},
		{"missing device ip", func(r *alert.RawAlert) { r.DeviceIP = "" }},
		{"missing alert type", func(r *alert.RawAlert) { r.AlertType = "" }},
		{"no observations", func(r *alert.RawAlert) { r.Observations = nil }},
		{"invalid observation field", func(r *alert.RawAlert) {
			r.Observations = []alert.Observation{{Field: "hostname", Value: "x"}}
		}},
		{"invalid impact", func(r *alert.RawAlert) { r.Impact = "extreme" }},
		{"invalid urgency", func(r *alert.RawAlert) { r.Urgency = "extreme" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw *alert.RawAlert
			if tt.mutate != nil {
				raw = rawLinkDown()
				tt.mutate(raw)
			}
			_, _, err := p.Ingest(ctx, raw)
			assert.ErrorIs(t, err, alert.ErrValidation)
		})
	}
}

func TestIngestHonorsProvidedImpactUrgency(t *testing.T) {
	p, rules, _ := newTestPipeline(t)
	seedRules(t, rules)
	ctx := context.Background()

	_, err := rules.CreatePriorityRule(ctx, &rule.PriorityRule{
		Category: alert.CategoryNetwork,
		Severity: alert.SeverityCritical,
		Impact:   alert.ImpactUrgencyHigh,
		Urgency:  alert.ImpactUrgencyHigh,
		Priority: alert.PriorityP1,
		Enabled:  true,
	})
	require.NoError(t, err)

	raw := rawLinkDown()
	raw.Impact = alert.ImpactUrgencyHigh
	raw.Urgency = alert.ImpactUrgencyHigh

	stored, _, err := p.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, alert.PriorityP1, stored.Priority)
	assert.Equal(t, alert.ImpactUrgencyHigh, stored.Impact)
}
