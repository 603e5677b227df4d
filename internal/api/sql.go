package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/sqlgate-core/internal/audit"
	"github.com/nerrad567/sqlgate-core/internal/rawsql"
)

// sqlResponse is the body of a successful raw statement.
type sqlResponse struct {
	OK     bool           `json:"ok"`
	Result *rawsql.Result `json:"result"`
}

// handleSQL runs POST /sql. The statement text and params are never logged.
func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !s.authorize(r) {
		status := writeErr(w, ErrUnauthorized)
		s.observe("", audit.ActionSQL, status, start, 0)
		return
	}

	req, err := decodeSQLRequest(r)
	if err != nil {
		status := writeErr(w, err)
		s.observe("", audit.ActionSQL, status, start, 0)
		return
	}

	res, err := s.gate.Execute(r.Context(), req.SQL, req.Params, req.AllowWrite)
	if err != nil {
		status := writeErr(w, err)
		s.observe("", audit.ActionSQL, status, start, 0)
		return
	}

	writeJSON(w, http.StatusOK, sqlResponse{OK: true, Result: res})

	if res.SchemaChanged {
		s.logger.Info("schema changed by raw statement, column cache purged")
	}
	if res.Write {
		s.recordChange(r, ChangeEvent{
			Operation:    audit.ActionSQL,
			RowsAffected: res.Meta.Changes,
		}, map[string]any{
			"last_row_id":    res.Meta.LastRowID,
			"schema_changed": res.SchemaChanged,
		})
	}

	rows := res.Meta.Changes
	if !res.Write {
		rows = int64(res.Meta.RowsRead)
	}
	s.observe("", audit.ActionSQL, http.StatusOK, start, rows)
}
