package rawsql

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nerrad567/sqlgate-core/internal/crud"
)

// Meta describes what a statement did.
type Meta struct {
	Changes    int64   `json:"changes"`
	LastRowID  int64   `json:"last_row_id"`
	RowsRead   int     `json:"rows_read"`
	DurationMS float64 `json:"duration_ms"`
}

// Result is the outcome of a raw statement.
type Result struct {
	Success bool       `json:"success"`
	Results []crud.Row `json:"results"`
	Meta    Meta       `json:"meta"`

	// Write is true when the statement was classified as a write.
	Write bool `json:"-"`
	// SchemaChanged is true when a DDL statement succeeded.
	SchemaChanged bool `json:"-"`
}

// Purger drops cached schema state.
type Purger interface {
	Purge()
}

// Gate executes raw statements.
type Gate struct {
	db     *sqlx.DB
	purger Purger
}

// NewGate creates a gate over db. After a successful CREATE, ALTER or DROP
// the purger is called so column lists are read again; it may be nil.
func NewGate(db *sqlx.DB, purger Purger) *Gate {
	return &Gate{db: db, purger: purger}
}

// Execute classifies and runs query with params bound positionally.
func (g *Gate) Execute(ctx context.Context, query string, params []any, allowWrite bool) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrMissingSQL
	}

	write := !IsRead(query)
	if write && !allowWrite {
		return nil, ErrWriteBlocked
	}

	start := time.Now()

	// Pin one connection so changes() reports on this statement.
	conn, err := g.db.Connx(ctx)
	if err != nil {
		return nil, engineErr(err)
	}
	defer conn.Close()

	res := &Result{Success: true, Write: write, Results: make([]crud.Row, 0)}

	if ReturnsRows(query) {
		rows, err := queryRows(ctx, conn, query, params)
		if err != nil {
			return nil, engineErr(err)
		}
		res.Results = rows
		res.Meta.RowsRead = len(rows)

		if write {
			if err := conn.QueryRowxContext(ctx, "SELECT changes(), last_insert_rowid()").
				Scan(&res.Meta.Changes, &res.Meta.LastRowID); err != nil {
				return nil, engineErr(err)
			}
		}
	} else {
		out, err := conn.ExecContext(ctx, query, params...)
		if err != nil {
			return nil, engineErr(err)
		}
		res.Meta.Changes, _ = out.RowsAffected()
		res.Meta.LastRowID, _ = out.LastInsertId()
	}

	res.Meta.DurationMS = float64(time.Since(start).Microseconds()) / 1000

	if write && IsDDL(query) {
		res.SchemaChanged = true
		if g.purger != nil {
			g.purger.Purge()
		}
	}

	return res, nil
}

func queryRows(ctx context.Context, conn *sqlx.Conn, query string, params []any) ([]crud.Row, error) {
	rows, err := conn.QueryxContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]crud.Row, 0)
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		out = append(out, crud.NormalizeRow(raw))
	}
	return out, rows.Err()
}
