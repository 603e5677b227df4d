// Package audit records successful mutations made through the gateway
// in the audit_logs table and lists them back.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Actions recorded in the log.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSQL    = "sql"
)

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Listing limits.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is a single audit trail record.
type Entry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	Table        string         `json:"table"`
	RowID        string         `json:"row_id,omitempty"`
	RowsAffected int64          `json:"rows_affected"`
	Source       string         `json:"source"`
	RemoteAddr   string         `json:"remote_addr,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action string // optional: create, update, delete, sql
	Table  string // optional
	Limit  int    // default 50, max 200
	Offset int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and lists audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps entries in the gateway's SQLite file.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a repository over db. The audit_logs
// migration must have been applied.
func NewSQLiteRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// row mirrors audit_logs for scanning.
type row struct {
	ID           string         `db:"id"`
	Action       string         `db:"action"`
	Table        string         `db:"table_name"`
	RowID        sql.NullString `db:"row_id"`
	RowsAffected int64          `db:"rows_affected"`
	Source       string         `db:"source"`
	RemoteAddr   sql.NullString `db:"remote_addr"`
	RequestID    sql.NullString `db:"request_id"`
	Details      sql.NullString `db:"details"`
	CreatedAt    string         `db:"created_at"`
}

// Create inserts an entry. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var details *string
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, table_name, row_id, rows_affected, source, remote_addr, request_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Table,
		nullableString(e.RowID), e.RowsAffected, e.Source,
		nullableString(e.RemoteAddr), nullableString(e.RequestID),
		details, e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Table != "" {
		conditions = append(conditions, "table_name = ?")
		args = append(args, filter.Table)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	var rows []row
	query := "SELECT id, action, table_name, row_id, rows_affected, source, remote_addr, request_id, details, created_at FROM audit_logs" +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?" //nolint:gosec // WHERE built from fixed conditions
	if err := r.db.SelectContext(ctx, &rows, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, rw := range rows {
		e, err := rw.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func (rw row) entry() (Entry, error) {
	e := Entry{
		ID:           rw.ID,
		Action:       rw.Action,
		Table:        rw.Table,
		RowID:        rw.RowID.String,
		RowsAffected: rw.RowsAffected,
		Source:       rw.Source,
		RemoteAddr:   rw.RemoteAddr.String,
		RequestID:    rw.RequestID.String,
	}

	if rw.Details.Valid && rw.Details.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(rw.Details.String), &details) == nil {
			e.Details = details
		}
	}

	t, err := time.Parse(timeLayout, rw.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit log timestamp %q: %w", rw.CreatedAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
