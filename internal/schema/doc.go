// Package schema guards and caches the structural side of generated SQL.
//
// Identifiers (table and column names) cannot be bound as parameters, so
// every identifier that reaches SQL text must pass Quote first. The Cache
// memoizes the ordered column list of each table, which is the whitelist
// request fields are filtered against.
//
// Cached column lists are never refreshed on their own: a column added by
// another process is not visible until the entry is evicted, Purge is
// called, or the process restarts.
//
// Thread Safety: Cache is safe for concurrent use. Two requests racing to
// fill the same table both introspect and store identical lists.
package schema
