// Package audit provides the append-only audit trail for rule evaluations
// and alert lifecycle transitions.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	EventRuleEvaluated         EventType = "rule_evaluated"
	EventStatusChanged         EventType = "status_changed"
	EventDeduplicated          EventType = "deduplicated"
	EventSeverityChanged       EventType = "severity_changed"
	EventPriorityChanged       EventType = "priority_changed"
	EventPriorityRuleAmbiguous EventType = "priority_rule_ambiguous"
)

// Event is one immutable audit record. Details carries a small key/value
// snapshot of the decision, e.g. which rule id matched or old/new status.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	AlertID   uuid.UUID         `json:"alertId,omitempty"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Success   bool              `json:"success"`
	Details   map[string]string `json:"details,omitempty"`
}

// Recorder appends audit events. Implementations must be safe for
// concurrent use. Recording failures must never block ingestion; callers
// log and continue.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(alertID uuid.UUID, eventType EventType, success bool, details map[string]string) Event {
	return Event{
		ID:        uuid.New(),
		AlertID:   alertID,
		Type:      eventType,
		Timestamp: time.Now(),
		Success:   success,
		Details:   details,
	}
}

// MemoryRecorder keeps events in memory, used in tests and single-node runs.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a snapshot of all recorded events in append order.
func (r *MemoryRecorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfType returns recorded events of the given type in append order.
func (r *MemoryRecorder) EventsOfType(t EventType) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
