// Package api implements the HTTP gateway: dynamic table routes, the raw
// SQL endpoint, and the operational endpoints around them.
//
// This package provides:
//   - /api/{table} and /api/{table}/{id} translated into parameterized SQL
//   - POST /sql for raw statements, read-only unless allow_write is set
//   - A WebSocket change feed and MQTT change events for every mutation
//   - An async audit trail of mutations, listed at /audit
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Request Flow
//
// A table request is authorized (mutating verbs only), its body and row id
// are resolved, and the crud translator maps verb and id presence onto one
// of list, detail, create, update or delete. Column names never come from
// the caller unchecked: every submitted field is matched against the
// table's introspected column list.
//
// # Security
//
// A single shared key, sent as X-API-Key or Authorization: Bearer, guards
// mutations, raw SQL, the audit log and the change feed. Without a
// configured key the gateway runs open.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and the audit repository are optional. The gateway serves
// requests without them; only the corresponding side channel is skipped.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
