package crud

import (
	"net/http"
	"time"
)

// Operation is one of the five table operations.
type Operation int

// Table operations, selected by Resolve.
const (
	OpList Operation = iota + 1
	OpDetail
	OpCreate
	OpUpdate
	OpDelete
)

// String returns the lowercase operation name used in logs and events.
func (o Operation) String() string {
	switch o {
	case OpList:
		return "list"
	case OpDetail:
		return "detail"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutating reports whether the operation writes to the table.
func (o Operation) Mutating() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// Resolve maps an HTTP verb and id presence onto an operation.
//
//	GET        no id  -> List
//	GET        id     -> Detail
//	POST       any    -> Create
//	PUT, PATCH id     -> Update (ErrMissingIdentifier without one)
//	DELETE     id     -> Delete (ErrMissingIdentifier without one)
//	anything else     -> ErrMethodNotAllowed
func Resolve(method string, hasID bool) (Operation, error) {
	switch method {
	case http.MethodGet:
		if hasID {
			return OpDetail, nil
		}
		return OpList, nil
	case http.MethodPost:
		return OpCreate, nil
	case http.MethodPut, http.MethodPatch:
		if !hasID {
			return 0, ErrMissingIdentifier
		}
		return OpUpdate, nil
	case http.MethodDelete:
		if !hasID {
			return 0, ErrMissingIdentifier
		}
		return OpDelete, nil
	default:
		return 0, ErrMethodNotAllowed
	}
}

// FieldMap holds submitted column values. Keys not in the table's column
// list are dropped before any SQL is built.
type FieldMap map[string]any

// QuerySpec describes one table request.
type QuerySpec struct {
	Table string

	// ID is the resolved row id: an int64, a string, or nil when absent.
	ID any

	// Page and PageSize of zero select the defaults. Values below one are
	// raised to one; PageSize is capped at the configured maximum.
	Page     int
	PageSize int

	Search string
	Fields FieldMap
}

// HasID reports whether the request names a row.
func (q QuerySpec) HasID() bool {
	return q.ID != nil
}

// Row is one result row keyed by column name.
type Row map[string]any

// ListResult is one page of rows plus the total match count.
type ListResult struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Items    []Row `json:"items"`
}

// Result is the outcome of Execute. Which fields are set depends on Operation.
type Result struct {
	Operation    Operation
	Table        string
	List         *ListResult
	Row          Row
	ID           any   // row id for Detail, Update, Delete; new id for Create
	RowsAffected int64 // Update, Delete and Create
	Duration     time.Duration
}
