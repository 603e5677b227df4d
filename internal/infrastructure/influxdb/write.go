package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the gateway.
const (
	MeasurementRequests    = "gateway_requests"
	MeasurementSchemaCache = "gateway_schema_cache"
)

// RequestMetric describes one handled table or raw SQL request.
type RequestMetric struct {
	Table     string // empty for raw SQL
	Operation string // list, detail, create, update, delete, sql
	Status    int
	Duration  time.Duration
	Rows      int64 // rows returned or affected
}

// NewRequestPoint builds the point for m. Table, operation and status are
// tags; duration and rows are fields.
func NewRequestPoint(m RequestMetric, ts time.Time) *write.Point {
	tags := map[string]string{
		"operation": m.Operation,
		"status":    strconv.Itoa(m.Status),
	}
	if m.Table != "" {
		tags["table"] = m.Table
	}

	return write.NewPoint(
		MeasurementRequests,
		tags,
		map[string]interface{}{
			"duration_ms": float64(m.Duration.Microseconds()) / 1000,
			"rows":        m.Rows,
		},
		ts,
	)
}

// WriteRequestMetric queues a request metric. The write is non-blocking;
// points are batched and sent asynchronously.
func (c *Client) WriteRequestMetric(m RequestMetric) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewRequestPoint(m, time.Now()))
}

// NewSchemaCachePoint builds the point for a column cache snapshot.
func NewSchemaCachePoint(entries int, hits, misses uint64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSchemaCache,
		nil,
		map[string]interface{}{
			"entries": int64(entries),
			"hits":    int64(hits),   //nolint:gosec // counters stay far below MaxInt64
			"misses":  int64(misses), //nolint:gosec // counters stay far below MaxInt64
		},
		ts,
	)
}

// WriteSchemaCacheStats queues a snapshot of the column cache counters.
func (c *Client) WriteSchemaCacheStats(entries int, hits, misses uint64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewSchemaCachePoint(entries, hits, misses, time.Now()))
}
