package rule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opsgrid/alert-core/internal/alert"
)

// PostgresStore implements Store using PostgreSQL via database/sql.
// The lib/pq driver is registered by the server entry point.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListEnabledSeverityMappings implements Provider.
func (s *PostgresStore) ListEnabledSeverityMappings(ctx context.Context, connectorType, vendor string) ([]*SeverityMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connector_type, vendor, source_field, source_value, target_severity, priority, enabled, description, created_at, updated_at
		FROM severity_mappings
		WHERE enabled = true AND connector_type = $1 AND (vendor IS NULL OR vendor = $2)
		ORDER BY priority DESC, id ASC
	`, connectorType, vendor)
	if err != nil {
		return nil, fmt.Errorf("query severity mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SeverityMapping
	for rows.Next() {
		m, err := scanSeverityMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan severity mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListEnabledCategoryMappings implements Provider.
func (s *PostgresStore) ListEnabledCategoryMappings(ctx context.Context, connectorType, vendor string) ([]*CategoryMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connector_type, vendor, source_field, source_value, target_category, priority, enabled, description, created_at, updated_at
		FROM category_mappings
		WHERE enabled = true AND connector_type = $1 AND (vendor IS NULL OR vendor = $2)
		ORDER BY priority DESC, id ASC
	`, connectorType, vendor)
	if err != nil {
		return nil, fmt.Errorf("query category mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CategoryMapping
	for rows.Next() {
		m, err := scanCategoryMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LookupPriorityRules implements Provider.
func (s *PostgresStore) LookupPriorityRules(ctx context.Context, category, severity, impact, urgency string) ([]*PriorityRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, severity, impact, urgency, priority, enabled, created_at, updated_at
		FROM priority_rules
		WHERE enabled = true AND category = $1 AND severity = $2 AND impact = $3 AND urgency = $4
		ORDER BY id ASC
	`, category, severity, impact, urgency)
	if err != nil {
		return nil, fmt.Errorf("query priority rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*PriorityRule
	for rows.Next() {
		r, err := scanPriorityRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan priority rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateSeverityMapping validates and inserts a new severity mapping.
func (s *PostgresStore) CreateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	cp := *m
	cp.CreatedAt = now
	cp.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO severity_mappings (connector_type, vendor, source_field, source_value, target_severity, priority, enabled, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, cp.ConnectorType, nullableString(cp.Vendor), string(cp.SourceField), cp.SourceValue,
		string(cp.TargetSeverity), cp.Priority, cp.Enabled, cp.Description, now, now).Scan(&cp.ID)
	if err != nil {
		return nil, fmt.Errorf("insert severity mapping: %w", err)
	}

	return &cp, nil
}

// UpdateSeverityMapping validates and updates an existing severity mapping.
func (s *PostgresStore) UpdateSeverityMapping(ctx context.Context, m *SeverityMapping) (*SeverityMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE severity_mappings
		SET connector_type = $1, vendor = $2, source_field = $3, source_value = $4,
			target_severity = $5, priority = $6, enabled = $7, description = $8, updated_at = $9
		WHERE id = $10
	`, m.ConnectorType, nullableString(m.Vendor), string(m.SourceField), m.SourceValue,
		string(m.TargetSeverity), m.Priority, m.Enabled, m.Description, now, m.ID)
	if err != nil {
		return nil, fmt.Errorf("update severity mapping: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	cp := *m
	cp.UpdatedAt = now
	return &cp, nil
}

// DeleteSeverityMapping removes a severity mapping.
func (s *PostgresStore) DeleteSeverityMapping(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "severity_mappings", id, "delete severity mapping")
}

// ListSeverityMappings returns severity mappings in display order.
func (s *PostgresStore) ListSeverityMappings(ctx context.Context, connectorType string) ([]*SeverityMapping, error) {
	query := `
		SELECT id, connector_type, vendor, source_field, source_value, target_severity, priority, enabled, description, created_at, updated_at
		FROM severity_mappings`
	args := []interface{}{}
	if connectorType != "" {
		query += " WHERE connector_type = $1"
		args = append(args, connectorType)
	}
	query += " ORDER BY priority DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query severity mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SeverityMapping
	for rows.Next() {
		m, err := scanSeverityMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan severity mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateCategoryMapping validates and inserts a new category mapping.
func (s *PostgresStore) CreateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	cp := *m
	cp.CreatedAt = now
	cp.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO category_mappings (connector_type, vendor, source_field, source_value, target_category, priority, enabled, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, cp.ConnectorType, nullableString(cp.Vendor), string(cp.SourceField), cp.SourceValue,
		string(cp.TargetCategory), cp.Priority, cp.Enabled, cp.Description, now, now).Scan(&cp.ID)
	if err != nil {
		return nil, fmt.Errorf("insert category mapping: %w", err)
	}

	return &cp, nil
}

// UpdateCategoryMapping validates and updates an existing category mapping.
func (s *PostgresStore) UpdateCategoryMapping(ctx context.Context, m *CategoryMapping) (*CategoryMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE category_mappings
		SET connector_type = $1, vendor = $2, source_field = $3, source_value = $4,
			target_category = $5, priority = $6, enabled = $7, description = $8, updated_at = $9
		WHERE id = $10
	`, m.ConnectorType, nullableString(m.Vendor), string(m.SourceField), m.SourceValue,
		string(m.TargetCategory), m.Priority, m.Enabled, m.Description, now, m.ID)
	if err != nil {
		return nil, fmt.Errorf("update category mapping: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	cp := *m
	cp.UpdatedAt = now
	return &cp, nil
}

// DeleteCategoryMapping removes a category mapping.
func (s *PostgresStore) DeleteCategoryMapping(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "category_mappings", id, "delete category mapping")
}

// ListCategoryMappings returns category mappings in display order.
func (s *PostgresStore) ListCategoryMappings(ctx context.Context, connectorType string) ([]*CategoryMapping, error) {
	query := `
		SELECT id, connector_type, vendor, source_field, source_value, target_category, priority, enabled, description, created_at, updated_at
		FROM category_mappings`
	args := []interface{}{}
	if connectorType != "" {
		query += " WHERE connector_type = $1"
		args = append(args, connectorType)
	}
	query += " ORDER BY priority DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CategoryMapping
	for rows.Next() {
		m, err := scanCategoryMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreatePriorityRule validates and inserts a new priority rule.
func (s *PostgresStore) CreatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	cp := *r
	cp.CreatedAt = now
	cp.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO priority_rules (category, severity, impact, urgency, priority, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, string(cp.Category), string(cp.Severity), string(cp.Impact), string(cp.Urgency),
		string(cp.Priority), cp.Enabled, now, now).Scan(&cp.ID)
	if err != nil {
		return nil, fmt.Errorf("insert priority rule: %w", err)
	}

	return &cp, nil
}

// UpdatePriorityRule validates and updates an existing priority rule.
func (s *PostgresStore) UpdatePriorityRule(ctx context.Context, r *PriorityRule) (*PriorityRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE priority_rules
		SET category = $1, severity = $2, impact = $3, urgency = $4, priority = $5, enabled = $6, updated_at = $7
		WHERE id = $8
	`, string(r.Category), string(r.Severity), string(r.Impact), string(r.Urgency),
		string(r.Priority), r.Enabled, now, r.ID)
	if err != nil {
		return nil, fmt.Errorf("update priority rule: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	cp := *r
	cp.UpdatedAt = now
	return &cp, nil
}

// DeletePriorityRule removes a priority rule.
func (s *PostgresStore) DeletePriorityRule(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "priority_rules", id, "delete priority rule")
}

// ListPriorityRules returns all priority rules ordered by id.
func (s *PostgresStore) ListPriorityRules(ctx context.Context) ([]*PriorityRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, severity, impact, urgency, priority, enabled, created_at, updated_at
		FROM priority_rules
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query priority rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*PriorityRule
	for rows.Next() {
		r, err := scanPriorityRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan priority rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) deleteByID(ctx context.Context, table string, id int64, op string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSeverityMapping(rows *sql.Rows) (*SeverityMapping, error) {
	m := &SeverityMapping{}
	var vendor, description sql.NullString
	var sourceField, targetSeverity string

	if err := rows.Scan(
		&m.ID, &m.ConnectorType, &vendor, &sourceField, &m.SourceValue,
		&targetSeverity, &m.Priority, &m.Enabled, &description,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Vendor = vendor.String
	m.Description = description.String
	m.SourceField = alert.SourceField(sourceField)
	m.TargetSeverity = alert.Severity(targetSeverity)
	return m, nil
}

func scanCategoryMapping(rows *sql.Rows) (*CategoryMapping, error) {
	m := &CategoryMapping{}
	var vendor, description sql.NullString
	var sourceField, targetCategory string

	if err := rows.Scan(
		&m.ID, &m.ConnectorType, &vendor, &sourceField, &m.SourceValue,
		&targetCategory, &m.Priority, &m.Enabled, &description,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Vendor = vendor.String
	m.Description = description.String
	m.SourceField = alert.SourceField(sourceField)
	m.TargetCategory = alert.Category(targetCategory)
	return m, nil
}

func scanPriorityRule(rows *sql.Rows) (*PriorityRule, error) {
	r := &PriorityRule{}
	var category, severity, impact, urgency, priority string

	if err := rows.Scan(
		&r.ID, &category, &severity, &impact, &urgency, &priority,
		&r.Enabled, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Category = alert.Category(category)
	r.Severity = alert.Severity(severity)
	r.Impact = alert.ImpactUrgency(impact)
	r.Urgency = alert.ImpactUrgency(urgency)
	r.Priority = alert.Priority(priority)
	return r, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)
