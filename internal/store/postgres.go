package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsgrid/alert-core/internal/alert"
)

// PostgresAlertStore implements AlertStore using PostgreSQL.
//
// The alerts table carries a partial unique index on fingerprint
// (WHERE status <> 'resolved') so the database is the final backstop
// against duplicate active alerts even across instances.
type PostgresAlertStore struct {
	db *pgxpool.Pool
}

// NewPostgresAlertStore creates a new Postgres-backed alert store.
func NewPostgresAlertStore(db *pgxpool.Pool) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

const alertColumns = `id, connector_type, vendor, device_ip, device_name, alert_type,
	source_field, source_value, severity, category, priority, impact, urgency,
	title, description, message, status, fingerprint, occurrence_count,
	occurred_at, last_seen_at, acknowledged_at, resolved_at, raw_data, version`

// Create implements AlertStore.
func (s *PostgresAlertStore) Create(ctx context.Context, a *alert.Alert) (*alert.Alert, error) {
	cp := a.Clone()
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Version = 1

	rawJSON, err := json.Marshal(cp.RawData)
	if err != nil {
		return nil, fmt.Errorf("marshal raw data: %w", err)
	}

	var id uuid.UUID
	err = s.db.QueryRow(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (fingerprint) WHERE status <> 'resolved' DO NOTHING
		RETURNING id
	`, cp.ID, cp.ConnectorType, nullableText(cp.Vendor), cp.DeviceIP, cp.DeviceName, cp.AlertType,
		string(cp.SourceField), cp.SourceValue, string(cp.Severity), string(cp.Category),
		string(cp.Priority), string(cp.Impact), string(cp.Urgency),
		cp.Title, cp.Description, cp.Message, string(cp.Status), cp.Fingerprint, cp.OccurrenceCount,
		cp.OccurredAt, cp.LastSeenAt, cp.AcknowledgedAt, cp.ResolvedAt, rawJSON, cp.Version).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateActive, cp.Fingerprint)
		}
		return nil, fmt.Errorf("insert alert: %w", err)
	}

	return cp, nil
}

// GetByID implements AlertStore.
func (s *PostgresAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	row := s.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: alert %s", alert.ErrNotFound, id)
		}
		return nil, fmt.Errorf("query alert: %w", err)
	}
	return a, nil
}

// GetActiveByFingerprint implements AlertStore.
func (s *PostgresAlertStore) GetActiveByFingerprint(ctx context.Context, fingerprint string) (*alert.Alert, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE fingerprint = $1 AND status <> 'resolved'
	`, fingerprint)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query alert by fingerprint: %w", err)
	}
	return a, nil
}

// Update implements AlertStore with an optimistic version check.
func (s *PostgresAlertStore) Update(ctx context.Context, a *alert.Alert) (*alert.Alert, error) {
	rawJSON, err := json.Marshal(a.RawData)
	if err != nil {
		return nil, fmt.Errorf("marshal raw data: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE alerts
		SET severity = $1, category = $2, priority = $3, impact = $4, urgency = $5,
			title = $6, description = $7, message = $8, status = $9,
			occurrence_count = $10, last_seen_at = $11, acknowledged_at = $12,
			resolved_at = $13, raw_data = $14, version = version + 1
		WHERE id = $15 AND version = $16
	`, string(a.Severity), string(a.Category), string(a.Priority), string(a.Impact), string(a.Urgency),
		a.Title, a.Description, a.Message, string(a.Status),
		a.OccurrenceCount, a.LastSeenAt, a.AcknowledgedAt,
		a.ResolvedAt, rawJSON, a.ID, a.Version)
	if err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a lost update.
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check alert existence: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: alert %s", alert.ErrNotFound, a.ID)
		}
		return nil, fmt.Errorf("%w: alert %s version %d", alert.ErrVersionConflict, a.ID, a.Version)
	}

	cp := a.Clone()
	cp.Version = a.Version + 1
	return cp, nil
}

// List implements AlertStore, newest last-seen first.
func (s *PostgresAlertStore) List(ctx context.Context, filter ListFilter) ([]*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(filter.Status))
		argIndex++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIndex)
		args = append(args, string(filter.Severity))
		argIndex++
	}
	if filter.ConnectorType != "" {
		query += fmt.Sprintf(" AND connector_type = $%d", argIndex)
		args = append(args, filter.ConnectorType)
		argIndex++
	}

	query += " ORDER BY last_seen_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	a := &alert.Alert{}
	var vendor *string
	var sourceField, severity, category, priority, impact, urgency, status string
	var acknowledgedAt, resolvedAt *time.Time
	var rawJSON []byte

	if err := row.Scan(
		&a.ID, &a.ConnectorType, &vendor, &a.DeviceIP, &a.DeviceName, &a.AlertType,
		&sourceField, &a.SourceValue, &severity, &category, &priority, &impact, &urgency,
		&a.Title, &a.Description, &a.Message, &status, &a.Fingerprint, &a.OccurrenceCount,
		&a.OccurredAt, &a.LastSeenAt, &acknowledgedAt, &resolvedAt, &rawJSON, &a.Version,
	); err != nil {
		return nil, err
	}

	if vendor != nil {
		a.Vendor = *vendor
	}
	a.SourceField = alert.SourceField(sourceField)
	a.Severity = alert.Severity(severity)
	a.Category = alert.Category(category)
	a.Priority = alert.Priority(priority)
	a.Impact = alert.ImpactUrgency(impact)
	a.Urgency = alert.ImpactUrgency(urgency)
	a.Status = alert.Status(status)
	a.AcknowledgedAt = acknowledgedAt
	a.ResolvedAt = resolvedAt

	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &a.RawData); err != nil {
			return nil, fmt.Errorf("unmarshal raw data: %w", err)
		}
	}
	return a, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresAlertStore implements AlertStore
var _ AlertStore = (*PostgresAlertStore)(nil)
