package crud

import "errors"

// Domain errors for table operations.
var (
	ErrMissingIdentifier = errors.New("crud: missing id in path, query or body")
	ErrNoValidFields     = errors.New("crud: no valid fields")
	ErrNotFound          = errors.New("crud: not found")
	ErrMethodNotAllowed  = errors.New("crud: method not allowed")

	// ErrEngine wraps failures reported by the database engine.
	ErrEngine = errors.New("crud: engine error")
)

// EngineError carries a driver failure. Its message is the driver's own text
// and it matches ErrEngine under errors.Is.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string { return e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool { return target == ErrEngine }

func engineErr(err error) error {
	return &EngineError{Err: err}
}
