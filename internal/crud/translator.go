package crud

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/sqlgate-core/internal/schema"
)

// Paging defaults used when Config leaves them unset.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// quotedPK is the primary key as it appears in SQL text.
const quotedPK = `"` + schema.PrimaryKey + `"`

// Schema is the subset of schema.Cache the translator depends on.
type Schema interface {
	TableExists(ctx context.Context, table string) error
	Columns(ctx context.Context, table string) (schema.ColumnSet, error)
}

// Config holds paging limits.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Translator builds and runs table statements.
type Translator struct {
	db     *sqlx.DB
	schema Schema
	cfg    Config
}

// NewTranslator creates a translator over db, whitelisting against s.
func NewTranslator(db *sqlx.DB, s Schema, cfg Config) *Translator {
	if cfg.MaxPageSize < 1 {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &Translator{db: db, schema: s, cfg: cfg}
}

// Execute resolves the operation for method and runs it.
func (t *Translator) Execute(ctx context.Context, method string, spec QuerySpec) (*Result, error) {
	op, err := Resolve(method, spec.HasID())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{Operation: op, Table: spec.Table, ID: spec.ID}

	switch op {
	case OpList:
		res.List, err = t.List(ctx, spec)
	case OpDetail:
		res.Row, err = t.Detail(ctx, spec.Table, spec.ID)
	case OpCreate:
		res.ID, err = t.Create(ctx, spec.Table, spec.Fields)
		if err == nil {
			res.RowsAffected = 1
		}
	case OpUpdate:
		res.RowsAffected, err = t.Update(ctx, spec.Table, spec.ID, spec.Fields)
	case OpDelete:
		res.RowsAffected, err = t.Delete(ctx, spec.Table, spec.ID)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

// paging applies defaults and clamps.
func (t *Translator) paging(spec QuerySpec) (page, size int) {
	page = spec.Page
	if page < 1 {
		page = 1
	}

	size = spec.PageSize
	switch {
	case size == 0:
		size = t.cfg.DefaultPageSize
	case size < 1:
		size = 1
	case size > t.cfg.MaxPageSize:
		size = t.cfg.MaxPageSize
	}

	// (page-1)*size must stay representable as an OFFSET.
	if maxPage := math.MaxInt / size; page > maxPage {
		page = maxPage
	}
	return page, size
}

// prepare validates the table name, checks it exists and returns its quoted form.
func (t *Translator) prepare(ctx context.Context, table string) (string, error) {
	quoted, err := schema.Quote(table)
	if err != nil {
		return "", err
	}
	if err := t.schema.TableExists(ctx, table); err != nil {
		return "", err
	}
	return quoted, nil
}

// List returns one page of rows, newest id first. A non-empty search term
// matches rows where any non-id column contains it.
func (t *Translator) List(ctx context.Context, spec QuerySpec) (*ListResult, error) {
	table, err := t.prepare(ctx, spec.Table)
	if err != nil {
		return nil, err
	}
	cols, err := t.schema.Columns(ctx, spec.Table)
	if err != nil {
		return nil, err
	}

	page, size := t.paging(spec)
	offset := (page - 1) * size

	where, args := searchClause(cols, strings.TrimSpace(spec.Search))

	dataSQL := "SELECT * FROM " + table + where + " ORDER BY " + quotedPK + " DESC LIMIT ? OFFSET ?"
	countSQL := "SELECT COUNT(*) FROM " + table + where

	dataArgs := make([]any, 0, len(args)+2)
	dataArgs = append(dataArgs, args...)
	dataArgs = append(dataArgs, size, offset)

	var (
		items []Row
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = t.queryRows(gctx, dataSQL, dataArgs...)
		return err
	})
	g.Go(func() error {
		return t.db.GetContext(gctx, &total, countSQL, args...)
	})
	if err := g.Wait(); err != nil {
		return nil, engineErr(err)
	}

	return &ListResult{
		Page:     page,
		PageSize: size,
		Total:    total,
		Items:    items,
	}, nil
}

// searchClause builds a LIKE disjunction over every searchable column, with
// one bound %term% per column. Columns whose names cannot be quoted are skipped.
func searchClause(cols schema.ColumnSet, term string) (string, []any) {
	if term == "" {
		return "", nil
	}

	pattern := "%" + term + "%"
	var (
		ors  []string
		args []any
	)
	for _, col := range cols.WithoutPrimaryKey() {
		quoted, err := schema.Quote(col)
		if err != nil {
			continue
		}
		ors = append(ors, quoted+" LIKE ?")
		args = append(args, pattern)
	}
	if len(ors) == 0 {
		return "", nil
	}
	return " WHERE (" + strings.Join(ors, " OR ") + ")", args
}

// Detail returns the row with the given id.
func (t *Translator) Detail(ctx context.Context, table string, id any) (Row, error) {
	if id == nil {
		return nil, ErrMissingIdentifier
	}
	quoted, err := t.prepare(ctx, table)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	err = t.db.QueryRowxContext(ctx, "SELECT * FROM "+quoted+" WHERE "+quotedPK+" = ?", id).MapScan(raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr(err)
	}
	return NormalizeRow(raw), nil
}

// Create inserts the whitelisted fields and returns the new row id.
func (t *Translator) Create(ctx context.Context, table string, fields FieldMap) (int64, error) {
	quoted, err := t.prepare(ctx, table)
	if err != nil {
		return 0, err
	}
	cols, vals, err := t.whitelist(ctx, table, fields)
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := "INSERT INTO " + quoted + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"

	res, err := t.db.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, engineErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, engineErr(err)
	}
	return id, nil
}

// Update sets the whitelisted fields on the row with the given id and
// returns the number of rows changed.
func (t *Translator) Update(ctx context.Context, table string, id any, fields FieldMap) (int64, error) {
	if id == nil {
		return 0, ErrMissingIdentifier
	}
	quoted, err := t.prepare(ctx, table)
	if err != nil {
		return 0, err
	}
	cols, vals, err := t.whitelist(ctx, table, fields)
	if err != nil {
		return 0, err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := "UPDATE " + quoted + " SET " + strings.Join(sets, ", ") + " WHERE " + quotedPK + " = ?"

	return t.execAffecting(ctx, query, append(vals, id)...)
}

// Delete removes the row with the given id and returns the number of rows removed.
func (t *Translator) Delete(ctx context.Context, table string, id any) (int64, error) {
	if id == nil {
		return 0, ErrMissingIdentifier
	}
	quoted, err := t.prepare(ctx, table)
	if err != nil {
		return 0, err
	}
	return t.execAffecting(ctx, "DELETE FROM "+quoted+" WHERE "+quotedPK+" = ?", id)
}

// execAffecting runs a statement that must touch at least one row.
func (t *Translator) execAffecting(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, engineErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, engineErr(err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// whitelist keeps the submitted fields that are real, non-id columns.
// The result follows the table's column order, so generated SQL is stable.
func (t *Translator) whitelist(ctx context.Context, table string, fields FieldMap) ([]string, []any, error) {
	cols, err := t.schema.Columns(ctx, table)
	if err != nil {
		return nil, nil, err
	}

	var (
		quoted []string
		vals   []any
	)
	for _, col := range cols.WithoutPrimaryKey() {
		v, ok := fields[col]
		if !ok {
			continue
		}
		q, err := schema.Quote(col)
		if err != nil {
			return nil, nil, err
		}
		quoted = append(quoted, q)
		vals = append(vals, v)
	}
	if len(quoted) == 0 {
		return nil, nil, ErrNoValidFields
	}
	return quoted, vals, nil
}

// queryRows runs a row-returning query and collects every row.
func (t *Translator) queryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := t.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Row, 0)
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		items = append(items, NormalizeRow(raw))
	}
	return items, rows.Err()
}

// NormalizeRow turns driver byte slices into strings so rows encode as
// readable JSON rather than base64.
func NormalizeRow(raw map[string]any) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[k] = v
	}
	return row
}
