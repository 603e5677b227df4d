package influxdb

import "errors"

var (
	// ErrMetricsDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "run without request metrics".
	ErrMetricsDisabled = errors.New("influxdb: request metrics disabled")

	// ErrUnreachable is returned when the metrics server cannot be pinged.
	ErrUnreachable = errors.New("influxdb: metrics server unreachable")

	// ErrClosed is returned by HealthCheck once the client has been closed.
	ErrClosed = errors.New("influxdb: metrics client closed")
)
