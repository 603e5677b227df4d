package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/sqlgate-core/internal/audit"
	"github.com/nerrad567/sqlgate-core/internal/crud"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/influxdb"
)

// ChangeEvent describes one successful mutation. It is pushed to WebSocket
// subscribers and published on {prefix}/change/{table}.
type ChangeEvent struct {
	Table        string `json:"table,omitempty"`
	Operation    string `json:"operation"`
	ID           any    `json:"id,omitempty"`
	RowsAffected int64  `json:"rows_affected"`
	RequestID    string `json:"request_id,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// recordChange fans a mutation out to the audit log, the WebSocket hub and
// MQTT. Raw SQL writes have no table and reach only "*" subscribers.
func (s *Server) recordChange(r *http.Request, ev ChangeEvent, details map[string]any) {
	ev.RequestID = requestID(r.Context())
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	entry := &audit.Entry{
		Action:       ev.Operation,
		Table:        ev.Table,
		RowsAffected: ev.RowsAffected,
		RemoteAddr:   r.RemoteAddr,
		RequestID:    ev.RequestID,
		Details:      details,
	}
	if ev.ID != nil {
		entry.RowID = fmt.Sprint(ev.ID)
	}
	if ev.Table == "" {
		entry.Source = "sql"
	}
	s.auditLog(entry)

	if ev.Table != "" {
		s.hub.Broadcast(EventTableChanged, ev, ev.Table, WSChannelAll)
	} else {
		s.hub.Broadcast(EventTableChanged, ev, WSChannelAll)
	}

	if ev.Table == "" || !s.mqtt.IsConnected() {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal change event", "error", err)
		return
	}
	go func() {
		if err := s.mqtt.PublishChange(ev.Table, payload); err != nil {
			s.logger.Warn("change event publish failed", "table", ev.Table, "error", err)
		}
	}()
}

// changeFromResult builds the event for a successful CRUD mutation.
func changeFromResult(res *crud.Result) ChangeEvent {
	return ChangeEvent{
		Table:        res.Table,
		Operation:    res.Operation.String(),
		ID:           res.ID,
		RowsAffected: res.RowsAffected,
	}
}

// observe records a request metric. A nil InfluxDB client ignores it.
func (s *Server) observe(table, operation string, status int, start time.Time, rows int64) {
	s.influx.WriteRequestMetric(influxdb.RequestMetric{
		Table:     table,
		Operation: operation,
		Status:    status,
		Duration:  time.Since(start),
		Rows:      rows,
	})
}
