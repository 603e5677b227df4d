package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sqlgate-core/internal/audit"
	"github.com/nerrad567/sqlgate-core/internal/crud"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sqlgate-core/internal/rawsql"
	"github.com/nerrad567/sqlgate-core/internal/schema"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// cacheStatsInterval is how often schema cache counters go to InfluxDB.
const cacheStatsInterval = time.Minute

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Gateway   config.GatewayConfig
	Logger    *logging.Logger
	DB        *database.DB
	Schema    *schema.Cache
	AuditRepo audit.Repository // optional: mutations are not audited without it
	MQTT      *mqtt.Client     // optional: change events are not published without it
	InfluxDB  *influxdb.Client // optional: request metrics are not written without it
	Version   string
}

// Server is the HTTP gateway.
//
// It owns the router, the CRUD translator, the raw SQL gate, the
// WebSocket hub and the async audit writer.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	serviceName  string
	logger       *logging.Logger
	db           *database.DB
	schema       *schema.Cache
	translator   *crud.Translator
	gate         *rawsql.Gate
	auditRepo    audit.Repository
	auditCh      chan *audit.Entry
	auditDropped atomic.Uint64
	mqtt         *mqtt.Client
	influx       *influxdb.Client
	hub          *Hub
	version      string
	startTime    time.Time
	server       *http.Server
	cancel       context.CancelFunc // cancels background goroutines on Close()
	workers      chan struct{}      // closed when background goroutines exit
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, database, schema cache)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Schema == nil {
		return nil, fmt.Errorf("schema cache is required")
	}

	name := deps.Gateway.ServiceName
	if name == "" {
		name = "sqlgate"
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		serviceName: name,
		logger:      deps.Logger,
		db:          deps.DB,
		schema:      deps.Schema,
		translator: crud.NewTranslator(deps.DB.DB, deps.Schema, crud.Config{
			DefaultPageSize: deps.Gateway.DefaultPageSize,
			MaxPageSize:     deps.Gateway.MaxPageSize,
		}),
		gate:      rawsql.NewGate(deps.DB.DB, deps.Schema),
		auditRepo: deps.AuditRepo,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		hub:       NewHub(deps.WS, deps.Logger),
		version:   deps.Version,
		startTime: time.Now(),
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	if s.secCfg.APIKey == "" {
		s.logger.Warn("no API key configured, mutating requests are open")
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, the audit writer and the metrics ticker,
// then launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	s.startWorkers(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startWorkers launches the hub, the audit drain and the cache stats ticker.
// It is a no-op while workers are already running.
func (s *Server) startWorkers(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.workers = make(chan struct{})

	go s.hub.Run(srvCtx)
	if s.influx != nil {
		go s.reportCacheStats(srvCtx)
	}

	go func() {
		defer close(s.workers)
		if s.auditCh != nil {
			s.drainAuditLog(srvCtx)
		}
	}()
}

// stopWorkers cancels background goroutines and waits for the audit
// writer to flush.
func (s *Server) stopWorkers() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.workers
	s.cancel = nil
}

// reportCacheStats periodically writes schema cache counters to InfluxDB.
func (s *Server) reportCacheStats(ctx context.Context) {
	ticker := time.NewTicker(cacheStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.schema.Stats()
			s.influx.WriteSchemaCacheStats(st.Entries, st.Hits, st.Misses)
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then stops the background workers so pending audit entries are written.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		s.stopWorkers()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.stopWorkers()
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
