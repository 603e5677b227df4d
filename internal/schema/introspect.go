package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Introspector answers structural questions about the engine's tables.
type Introspector interface {
	// TableExists reports whether a base table with this exact name exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// Columns returns the table's column names in declaration order.
	Columns(ctx context.Context, table string) ([]string, error)
}

// SQLiteIntrospector reads sqlite_master and PRAGMA table_info.
type SQLiteIntrospector struct {
	db sqlx.QueryerContext
}

// NewSQLiteIntrospector creates an introspector over db.
func NewSQLiteIntrospector(db sqlx.QueryerContext) *SQLiteIntrospector {
	return &SQLiteIntrospector{db: db}
}

// TableExists looks the table up in sqlite_master.
func (s *SQLiteIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := sqlx.GetContext(ctx, s.db, &name,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up table %s: %w", table, err)
	}
	return true, nil
}

// columnInfo is one row of PRAGMA table_info.
type columnInfo struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull bool           `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

// Columns runs PRAGMA table_info. PRAGMA arguments cannot be bound, so the
// table name is quoted into the statement.
func (s *SQLiteIntrospector) Columns(ctx context.Context, table string) ([]string, error) {
	quoted, err := Quote(table)
	if err != nil {
		return nil, err
	}

	var info []columnInfo
	if err := sqlx.SelectContext(ctx, s.db, &info, "PRAGMA table_info("+quoted+")"); err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	cols := make([]string, len(info))
	for i, c := range info {
		cols[i] = c.Name
	}
	return cols, nil
}
