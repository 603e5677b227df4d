package rawsql

import "errors"

var (
	// ErrMissingSQL is returned for an empty statement.
	ErrMissingSQL = errors.New("rawsql: missing sql")

	// ErrWriteBlocked is returned when a write statement is submitted without allow_write.
	ErrWriteBlocked = errors.New("rawsql: non-SELECT blocked (set allow_write=true)")

	// ErrEngine matches every failure reported by the database engine.
	ErrEngine = errors.New("rawsql: engine error")
)

// EngineError carries a driver failure. Its message is the driver's own text.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string { return e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

// Is reports true for ErrEngine.
func (e *EngineError) Is(target error) bool { return target == ErrEngine }

func engineErr(err error) error {
	return &EngineError{Err: err}
}
