package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const existsQuery = "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"

var pragmaColumns = []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}

func newMockCache(t *testing.T, hidden ...string) (*Cache, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := NewCache(NewSQLiteIntrospector(sqlx.NewDb(db, "sqlite3")), 8, hidden)
	require.NoError(t, err)
	return cache, mock
}

func widgetColumns() *sqlmock.Rows {
	return sqlmock.NewRows(pragmaColumns).
		AddRow(int64(0), "id", "INTEGER", int64(0), nil, int64(1)).
		AddRow(int64(1), "name", "TEXT", int64(1), nil, int64(0)).
		AddRow(int64(2), "colour", "TEXT", int64(0), "'red'", int64(0))
}

func TestCache_ColumnsIntrospectsOnce(t *testing.T) {
	cache, mock := newMockCache(t)
	ctx := context.Background()

	// Exactly one PRAGMA is expected; a second would fail the expectations.
	mock.ExpectQuery(`PRAGMA table_info("widgets")`).WillReturnRows(widgetColumns())

	first, err := cache.Columns(ctx, "widgets")
	require.NoError(t, err)
	second, err := cache.Columns(ctx, "widgets")
	require.NoError(t, err)

	assert.Equal(t, ColumnSet{"id", "name", "colour"}, first)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_ColumnsReturnsCopy(t *testing.T) {
	cache, mock := newMockCache(t)
	ctx := context.Background()
	mock.ExpectQuery(`PRAGMA table_info("widgets")`).WillReturnRows(widgetColumns())

	cols, err := cache.Columns(ctx, "widgets")
	require.NoError(t, err)
	cols[0] = "mutated"

	again, err := cache.Columns(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, "id", again[0])
}

func TestCache_ColumnsInvalidIdentifier(t *testing.T) {
	cache, mock := newMockCache(t)

	_, err := cache.Columns(context.Background(), "bad name")
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_ColumnsEmptyTable(t *testing.T) {
	cache, mock := newMockCache(t)
	mock.ExpectQuery(`PRAGMA table_info("ghost")`).WillReturnRows(sqlmock.NewRows(pragmaColumns))

	_, err := cache.Columns(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrTableNotFound))
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestCache_ColumnsEngineError(t *testing.T) {
	cache, mock := newMockCache(t)
	mock.ExpectQuery(`PRAGMA table_info("widgets")`).WillReturnError(assert.AnError)

	_, err := cache.Columns(context.Background(), "widgets")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCache_Purge(t *testing.T) {
	cache, mock := newMockCache(t)
	ctx := context.Background()

	mock.ExpectQuery(`PRAGMA table_info("widgets")`).WillReturnRows(widgetColumns())
	mock.ExpectQuery(`PRAGMA table_info("widgets")`).WillReturnRows(
		sqlmock.NewRows(pragmaColumns).
			AddRow(int64(0), "id", "INTEGER", int64(0), nil, int64(1)).
			AddRow(int64(1), "name", "TEXT", int64(1), nil, int64(0)).
			AddRow(int64(2), "colour", "TEXT", int64(0), nil, int64(0)).
			AddRow(int64(3), "weight", "REAL", int64(0), nil, int64(0)))

	_, err := cache.Columns(ctx, "widgets")
	require.NoError(t, err)

	cache.Purge()
	assert.Equal(t, 0, cache.Stats().Entries)

	cols, err := cache.Columns(ctx, "widgets")
	require.NoError(t, err)
	assert.Contains(t, cols, "weight")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_TableExists(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		hidden    []string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name:  "present",
			table: "widgets",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(existsQuery).WithArgs("widgets").
					WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("widgets"))
			},
		},
		{
			name:  "absent",
			table: "ghost",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(existsQuery).WithArgs("ghost").
					WillReturnRows(sqlmock.NewRows([]string{"name"}))
			},
			wantErr: ErrTableNotFound,
		},
		{
			name:    "hidden by config",
			table:   "audit_logs",
			hidden:  []string{"audit_logs"},
			wantErr: ErrTableNotFound,
		},
		{
			name:    "hidden case insensitive",
			table:   "Audit_Logs",
			hidden:  []string{"audit_logs"},
			wantErr: ErrTableNotFound,
		},
		{
			name:    "sqlite internal",
			table:   "sqlite_sequence",
			wantErr: ErrTableNotFound,
		},
		{
			name:  "engine failure",
			table: "widgets",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(existsQuery).WithArgs("widgets").WillReturnError(assert.AnError)
			},
			wantErr: assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, mock := newMockCache(t, tt.hidden...)
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			err := cache.TableExists(context.Background(), tt.table)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type countingIntrospector struct {
	mu    sync.Mutex
	calls int
}

func (c *countingIntrospector) TableExists(context.Context, string) (bool, error) {
	return true, nil
}

func (c *countingIntrospector) Columns(context.Context, string) ([]string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return []string{"id", "name"}, nil
}

func TestCache_ConcurrentColumns(t *testing.T) {
	intro := &countingIntrospector{}
	cache, err := NewCache(intro, 4, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cols, err := cache.Columns(context.Background(), "widgets")
			assert.NoError(t, err)
			assert.Equal(t, ColumnSet{"id", "name"}, cols)
		}()
	}
	wg.Wait()

	// Racing fills may introspect more than once but the result is stable.
	assert.GreaterOrEqual(t, intro.calls, 1)
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestCache_Eviction(t *testing.T) {
	intro := &countingIntrospector{}
	cache, err := NewCache(intro, 2, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for _, table := range []string{"a", "b", "c"} {
		_, err := cache.Columns(ctx, table)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Stats().Entries)

	_, err = cache.Columns(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, intro.calls)
}

func TestColumnSet(t *testing.T) {
	cols := ColumnSet{"id", "name", "colour"}
	assert.NotContains(t, cols.WithoutPrimaryKey(), "id")
	assert.Equal(t, ColumnSet{"name", "colour"}, cols.WithoutPrimaryKey())
}

func TestNewCache_InvalidSize(t *testing.T) {
	_, err := NewCache(&countingIntrospector{}, 0, nil)
	assert.Error(t, err)
}
