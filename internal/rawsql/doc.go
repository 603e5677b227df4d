// Package rawsql runs caller-supplied SQL behind a write switch.
//
// Statements are classified lexically: text that starts with WITH or SELECT
// is a read, everything else is a write and is refused unless the caller
// opts in. The check is a heuristic, not a parser. A statement such as
// "WITH x AS (...) DELETE FROM t" classifies as a read and runs.
//
// Statements that mention SELECT anywhere are run through the row-returning
// path; the rest report only change counts. Parameters are always bound
// positionally.
package rawsql
