package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder appends audit events to the audit_events table.
// Rows are insert-only; there is no update or delete path.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder creates a new Postgres-backed recorder.
func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Record implements Recorder.
func (r *PostgresRecorder) Record(ctx context.Context, event Event) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var alertID interface{}
	if event.AlertID != uuid.Nil {
		alertID = event.AlertID
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_events (id, alert_id, event_type, timestamp, success, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, alertID, string(event.Type), event.Timestamp, event.Success, detailsJSON)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Ensure PostgresRecorder implements Recorder
var _ Recorder = (*PostgresRecorder)(nil)
