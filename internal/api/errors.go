package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/sqlgate-core/internal/crud"
	"github.com/nerrad567/sqlgate-core/internal/schema"
)

var (
	// ErrUnauthorized is returned when a protected operation lacks a valid credential.
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrMalformedBody is returned when a declared JSON body cannot be parsed
	// or is not an object.
	ErrMalformedBody = errors.New("api: malformed body")
)

// errorResponse is the envelope for every failure.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes the failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{OK: false, Error: message})
}

// writeErr maps err onto a status and writes the failure envelope.
func writeErr(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	writeError(w, status, err.Error())
	return status
}

// statusFor maps domain errors onto HTTP status codes. Anything not listed
// is the caller's fault and becomes 400, engine errors included.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, crud.ErrNotFound), errors.Is(err, schema.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, crud.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusBadRequest
	}
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}
