package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sqlgate-core/internal/crud"
)

// listResponse is the body of a successful list.
type listResponse struct {
	OK bool `json:"ok"`
	*crud.ListResult
}

// handleTable serves every verb on /api/{table} and /api/{table}/{id}.
// Mutations are authorized before the body is read.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	table := chi.URLParam(r, "table")

	if isMutating(r.Method) && !s.authorize(r) {
		status := writeErr(w, ErrUnauthorized)
		s.observe(table, "unauthorized", status, start, 0)
		return
	}

	body, err := resolveBody(r, chi.URLParam(r, "id"))
	if err != nil {
		status := writeErr(w, err)
		s.observe(table, "malformed", status, start, 0)
		return
	}

	page, pageSize, search := listParams(r)
	res, err := s.translator.Execute(r.Context(), r.Method, crud.QuerySpec{
		Table:    table,
		ID:       body.ID,
		Page:     page,
		PageSize: pageSize,
		Search:   search,
		Fields:   body.Fields,
	})
	if err != nil {
		status := writeErr(w, err)
		if status == http.StatusBadRequest {
			s.logger.Debug("table request rejected", "table", table, "method", r.Method, "error", err)
		}
		s.observe(table, "error", status, start, 0)
		return
	}

	var (
		status = http.StatusOK
		rows   = res.RowsAffected
	)
	switch res.Operation {
	case crud.OpList:
		rows = int64(len(res.List.Items))
		writeJSON(w, status, listResponse{OK: true, ListResult: res.List})
	case crud.OpDetail:
		rows = 1
		writeJSON(w, status, map[string]any{"ok": true, "data": res.Row})
	case crud.OpCreate:
		status = http.StatusCreated
		writeJSON(w, status, map[string]any{"ok": true, "id": res.ID})
	case crud.OpUpdate:
		writeJSON(w, status, map[string]any{"ok": true, "updated": res.RowsAffected})
	case crud.OpDelete:
		writeJSON(w, status, map[string]any{"ok": true, "deleted": res.RowsAffected})
	}

	if res.Operation.Mutating() {
		s.recordChange(r, changeFromResult(res), map[string]any{"method": r.Method})
	}
	s.observe(table, res.Operation.String(), status, start, rows)
}
