// Package influxdb writes gateway request metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched metric writing and health monitoring.
//
// # Measurements
//
//   - gateway_requests: one point per handled request, tagged by table,
//     operation and status, with duration_ms and rows fields
//   - gateway_schema_cache: periodic column cache counters
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRequestMetric(influxdb.RequestMetric{
//	    Table: "users", Operation: "list", Status: 200, Duration: d,
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking; failures arrive through SetOnError and are
// counted by FailedWrites. A nil *Client drops every write.
package influxdb
