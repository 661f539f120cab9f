// Package alert defines the canonical alert model shared by the
// normalization, prioritization, deduplication and lifecycle components.
package alert

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the canonical severity vocabulary all connector-specific
// values are normalized into.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityClear    Severity = "clear"
)

// Severities lists all valid severities.
var Severities = []Severity{
	SeverityCritical, SeverityMajor, SeverityMinor,
	SeverityWarning, SeverityInfo, SeverityClear,
}

// Valid reports whether s is a member of the canonical severity vocabulary.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor,
		SeverityWarning, SeverityInfo, SeverityClear:
		return true
	}
	return false
}

// Category is the canonical alert category vocabulary.
type Category string

const (
	CategoryNetwork     Category = "network"
	CategoryPower       Category = "power"
	CategoryVideo       Category = "video"
	CategoryWireless    Category = "wireless"
	CategorySecurity    Category = "security"
	CategoryEnvironment Category = "environment"
	CategoryCompute     Category = "compute"
	CategoryStorage     Category = "storage"
	CategoryApplication Category = "application"
	CategorySystem      Category = "system"
	CategoryUnknown     Category = "unknown"
)

// Valid reports whether c is a member of the canonical category vocabulary.
func (c Category) Valid() bool {
	switch c {
	case CategoryNetwork, CategoryPower, CategoryVideo, CategoryWireless,
		CategorySecurity, CategoryEnvironment, CategoryCompute,
		CategoryStorage, CategoryApplication, CategorySystem, CategoryUnknown:
		return true
	}
	return false
}

// Priority is an ITIL-style P1..P5 classification.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
	PriorityP5 Priority = "P5"
)

// Valid reports whether p is one of P1..P5.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4, PriorityP5:
		return true
	}
	return false
}

// ImpactUrgency is the business impact / urgency scale.
type ImpactUrgency string

const (
	ImpactUrgencyHigh   ImpactUrgency = "high"
	ImpactUrgencyMedium ImpactUrgency = "medium"
	ImpactUrgencyLow    ImpactUrgency = "low"
)

// Valid reports whether v is high, medium or low.
func (v ImpactUrgency) Valid() bool {
	switch v {
	case ImpactUrgencyHigh, ImpactUrgencyMedium, ImpactUrgencyLow:
		return true
	}
	return false
}

// SourceField identifies which raw-alert field a mapping rule matches on.
type SourceField string

const (
	SourceFieldStatus     SourceField = "status"
	SourceFieldStatusText SourceField = "status_text"
	SourceFieldType       SourceField = "type"
	SourceFieldSensor     SourceField = "sensor"
)

// Valid reports whether f is a recognized source field.
func (f SourceField) Valid() bool {
	switch f {
	case SourceFieldStatus, SourceFieldStatusText, SourceFieldType, SourceFieldSensor:
		return true
	}
	return false
}

// Status is the alert lifecycle state.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusSuppressed   Status = "suppressed"
	StatusResolved     Status = "resolved"
)

// Valid reports whether s is a recognized lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusSuppressed, StatusResolved:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved
}

// Observation is one (source_field, source_value) pair extracted from a raw
// alert. A raw alert may expose several, e.g. both status and status_text.
type Observation struct {
	Field SourceField `json:"field"`
	Value string      `json:"value"`
}

// RawAlert is the payload submitted by a connector, before normalization.
type RawAlert struct {
	ConnectorType string                 `json:"connectorType"`
	Vendor        string                 `json:"vendor,omitempty"`
	DeviceIP      string                 `json:"deviceIp"`
	DeviceName    string                 `json:"deviceName"`
	AlertType     string                 `json:"alertType"`
	Observations  []Observation          `json:"observations"`
	Impact        ImpactUrgency          `json:"impact,omitempty"`
	Urgency       ImpactUrgency          `json:"urgency,omitempty"`
	Title         string                 `json:"title,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Message       string                 `json:"message,omitempty"`
	RawData       map[string]interface{} `json:"rawData,omitempty"`
}

// Alert is the canonical deduplicated alert record.
type Alert struct {
	ID              uuid.UUID              `json:"id"`
	ConnectorType   string                 `json:"connectorType"`
	Vendor          string                 `json:"vendor,omitempty"`
	DeviceIP        string                 `json:"deviceIp"`
	DeviceName      string                 `json:"deviceName"`
	AlertType       string                 `json:"alertType"`
	SourceField     SourceField            `json:"sourceField"`
	SourceValue     string                 `json:"sourceValue"`
	Severity        Severity               `json:"severity"`
	Category        Category               `json:"category"`
	Priority        Priority               `json:"priority"`
	Impact          ImpactUrgency          `json:"impact"`
	Urgency         ImpactUrgency          `json:"urgency"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description,omitempty"`
	Message         string                 `json:"message,omitempty"`
	Status          Status                 `json:"status"`
	Fingerprint     string                 `json:"fingerprint"`
	OccurrenceCount int                    `json:"occurrenceCount"`
	OccurredAt      time.Time              `json:"occurredAt"`
	LastSeenAt      time.Time              `json:"lastSeenAt"`
	AcknowledgedAt  *time.Time             `json:"acknowledgedAt,omitempty"`
	ResolvedAt      *time.Time             `json:"resolvedAt,omitempty"`
	RawData         map[string]interface{} `json:"rawData,omitempty"`

	// Version supports optimistic concurrency on lifecycle mutations.
	// It is incremented by the store on every successful update.
	Version int64 `json:"version"`
}

// Clone returns a deep-enough copy for handing alerts across goroutines.
// RawData values are shared; callers must not mutate them.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	cp := *a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	if a.RawData != nil {
		cp.RawData = make(map[string]interface{}, len(a.RawData))
		for k, v := range a.RawData {
			cp.RawData[k] = v
		}
	}
	return &cp
}
