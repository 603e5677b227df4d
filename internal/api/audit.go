package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/sqlgate-core/internal/audit"
)

// auditChanSize is the buffer size for the async audit log channel.
// Entries beyond this are dropped to avoid back-pressure on requests.
const auditChanSize = 256

// auditLog enqueues an entry for asynchronous write.
// If the channel is full the entry is dropped and a warning is logged.
func (s *Server) auditLog(entry *audit.Entry) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}
	if entry.Source == "" {
		entry.Source = "api"
	}

	select {
	case s.auditCh <- entry:
	default:
		s.auditDropped.Add(1)
		s.logger.Warn("audit log channel full, dropping entry",
			"action", entry.Action,
			"table", entry.Table,
		)
	}
}

// drainAuditLog reads entries from the audit channel and writes them serially.
// It runs until the context is cancelled, then drains remaining entries.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	if err := s.auditRepo.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit log write failed",
			"action", entry.Action,
			"table", entry.Table,
			"error", err,
		)
	}
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: create, update, delete or sql
//   - table: filter by table name
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Table:  q.Get("table"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*audit.ListResult
	}{OK: true, ListResult: result})
}
