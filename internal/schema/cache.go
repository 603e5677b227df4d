package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PrimaryKey is the column every gateway table is keyed by.
const PrimaryKey = "id"

// ColumnSet is a table's ordered column list.
type ColumnSet []string

// WithoutPrimaryKey returns the columns other than the primary key.
func (c ColumnSet) WithoutPrimaryKey() ColumnSet {
	out := make(ColumnSet, 0, len(c))
	for _, col := range c {
		if col != PrimaryKey {
			out = append(out, col)
		}
	}
	return out
}

// Stats are cumulative cache counters.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache memoizes per-table column lists in a bounded LRU.
type Cache struct {
	intro   Introspector
	columns *lru.Cache[string, ColumnSet]
	hidden  map[string]struct{}

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache holding at most size tables. Tables named in
// hidden, and SQLite's internal sqlite_* tables, are reported as absent.
func NewCache(intro Introspector, size int, hidden []string) (*Cache, error) {
	columns, err := lru.New[string, ColumnSet](size)
	if err != nil {
		return nil, fmt.Errorf("creating schema cache: %w", err)
	}

	h := make(map[string]struct{}, len(hidden))
	for _, t := range hidden {
		h[strings.ToLower(t)] = struct{}{}
	}

	return &Cache{
		intro:   intro,
		columns: columns,
		hidden:  h,
	}, nil
}

// Hidden reports whether table is withheld from the gateway.
func (c *Cache) Hidden(table string) bool {
	lower := strings.ToLower(table)
	if strings.HasPrefix(lower, "sqlite_") {
		return true
	}
	_, ok := c.hidden[lower]
	return ok
}

// TableExists fails with ErrTableNotFound when the table is absent or hidden.
// It always asks the engine; only column lists are cached.
func (c *Cache) TableExists(ctx context.Context, table string) error {
	if c.Hidden(table) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	ok, err := c.intro.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return nil
}

// Columns returns the table's ordered column list. The first call per
// table introspects; later calls are served from memory. Callers should
// have checked TableExists first.
func (c *Cache) Columns(ctx context.Context, table string) (ColumnSet, error) {
	if _, err := Quote(table); err != nil {
		return nil, err
	}

	if cols, ok := c.columns.Get(table); ok {
		c.hits.Add(1)
		return slices.Clone(cols), nil
	}
	c.misses.Add(1)

	names, err := c.intro.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	cols := ColumnSet(names)
	c.columns.Add(table, cols)
	return slices.Clone(cols), nil
}

// Purge drops every cached column list.
func (c *Cache) Purge() {
	c.columns.Purge()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries: c.columns.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
