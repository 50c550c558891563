// Package audit keeps the operator trail of panel writes and session events
// in the audit_logs table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the trail.
const (
	ActionCommand = "command"
	ActionSession = "session"
)

// Entity types recorded in the trail.
const (
	EntityTypeEntity = "entity"
	EntityTypePanel  = "panel"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timestampLayout is fixed width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// AuditLog is one trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog reads better than audit.Log at call sites
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects audit logs. Empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Source     string
	Since      time.Time
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult is one page of audit logs.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository stores and lists audit logs.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository is the audit_logs table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts log. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	log.CreatedAt = log.CreatedAt.UTC()

	var detailsJSON *string
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, source, details, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Action, log.EntityType,
		nullableString(log.EntityID), log.Source, detailsJSON,
		nullableString(log.Error),
		log.CreatedAt.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns matching logs, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := filter.where()

	// where is built from fixed column names with ? placeholders.
	countQuery := "SELECT COUNT(*) FROM audit_logs " + where //nolint:gosec // parameterised
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := "SELECT id, action, entity_type, entity_id, source, details, error, created_at FROM audit_logs " + //nolint:gosec // parameterised
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func (f Filter) where() (string, []any) {
	var conditions []string
	var args []any

	add := func(column, value string) {
		if value != "" {
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		}
	}
	add("action", f.Action)
	add("entity_type", f.EntityType)
	add("entity_id", f.EntityID)
	add("source", f.Source)
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timestampLayout))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var log AuditLog
	var entityID, detailsJSON, errText sql.NullString
	var createdAt string

	if err := rows.Scan(&log.ID, &log.Action, &log.EntityType,
		&entityID, &log.Source, &detailsJSON, &errText, &createdAt); err != nil {
		return AuditLog{}, fmt.Errorf("scanning audit log: %w", err)
	}

	log.EntityID = entityID.String
	log.Error = errText.String
	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
			log.Details = details
		}
	}

	t, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
		}
	}
	log.CreatedAt = t
	return log, nil
}
