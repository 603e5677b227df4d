package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Route patterns for the table API.
const (
	tablePattern = "/api/{table:[A-Za-z0-9_]+}"
	rowPattern   = tablePattern + "/{id:[0-9]+}"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.StripSlashes)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Operational endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/audit", s.handleListAuditLogs)
	})

	// WebSocket change feed (credential checked in handler, query key allowed)
	r.Get("/ws", s.handleWebSocket)

	r.Post("/sql", s.handleSQL)

	// Every verb reaches the translator, which rejects the ones it cannot map
	r.HandleFunc(tablePattern, s.handleTable)
	r.HandleFunc(rowPattern, s.handleTable)

	r.NotFound(s.handleIndex)
	r.MethodNotAllowed(s.handleIndex)

	return r
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// indexResponse describes the gateway to callers on unmatched paths.
type indexResponse struct {
	OK      bool              `json:"ok"`
	Service string            `json:"service"`
	Hint    map[string]string `json:"hint"`
}

// usageHint lists the supported request shapes.
var usageHint = map[string]string{
	"sql":          "POST /sql { sql, params?, allow_write? }  (API key)",
	"list":         "GET /api/:table?search=&page=&page_size=",
	"detail":       "GET /api/:table/:id  or  GET /api/:table?id=",
	"create":       "POST /api/:table  { ...fields }  (API key)",
	"update":       "PUT|PATCH /api/:table/:id  { ...fields }  (API key)",
	"delete":       "DELETE /api/:table/:id  (API key)",
	"id_from_json": "Every operation also accepts {id} in the JSON body",
}

// handleIndex answers unmatched paths and wrong verbs with the usage hint.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		OK:      true,
		Service: s.serviceName,
		Hint:    usageHint,
	})
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":      false,
			"status":  "unhealthy",
			"error":   "database unavailable",
			"version": s.version,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"status":  "ok",
		"version": s.version,
	})
}
