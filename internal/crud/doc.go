// Package crud translates table requests into parameterized SQL.
//
// A request is reduced to a QuerySpec (table, optional id, paging, search
// term and submitted fields). Resolve picks the operation from the HTTP verb
// and whether an id is present; the Translator then checks the table,
// whitelists fields against the live column list and runs exactly one
// statement (List runs its page and count queries side by side).
//
// Identifiers reach SQL text only through schema.Quote. Values are always
// bound.
//
// Every table served this way is assumed to have an "id" primary key.
package crud
