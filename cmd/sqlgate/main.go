// sqlgate exposes the tables of a SQLite database over HTTP.
//
// Every table becomes a REST resource under /api/{table}; POST /sql runs
// raw statements for callers holding the API key. Mutations are audited,
// pushed to WebSocket subscribers and optionally published over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/sqlgate-core/migrations"

	"github.com/nerrad567/sqlgate-core/internal/api"
	"github.com/nerrad567/sqlgate-core/internal/audit"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/sqlgate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sqlgate-core/internal/schema"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// healthCheckTimeout bounds the startup dependency check.
const healthCheckTimeout = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command serves.
func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), resolveConfigPath(configPath))
	}

	root := &cobra.Command{
		Use:           "sqlgate",
		Short:         "HTTP gateway for SQLite tables",
		Version:       version,
		RunE:          serve,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $SQLGATE_CONFIG, else built-in defaults)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE:  serve,
	})

	var down, status bool
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the gateway's own migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, resolveConfigPath(configPath), down, status)
		},
	}
	migrate.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	migrate.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	migrate.MarkFlagsMutuallyExclusive("down", "status")
	root.AddCommand(migrate)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlgate %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return root
}

// resolveConfigPath prefers the flag, then SQLGATE_CONFIG. Empty means
// defaults plus environment.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("SQLGATE_CONFIG")
}

// run is the gateway lifecycle, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML file, or "" for defaults plus environment
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting sqlgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"open_mode", cfg.OpenMode(),
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	cache, err := schema.NewCache(schema.NewSQLiteIntrospector(db.DB), cfg.Gateway.SchemaCacheSize, cfg.Gateway.HiddenTables)
	if err != nil {
		return fmt.Errorf("creating schema cache: %w", err)
	}

	// MQTT change events (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topic_prefix", cfg.MQTT.TopicPrefix,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB request metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("startup health check: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Gateway:   cfg.Gateway,
		Logger:    log,
		DB:        db,
		Schema:    cache,
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		MQTT:      mqttClient,
		InfluxDB:  influxClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("sqlgate ready", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// runMigrate applies, rolls back or reports the gateway migrations.
func runMigrate(cmd *cobra.Command, configPath string, down, status bool) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	switch {
	case status:
		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		for _, m := range applied {
			fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.Applied)
		}
		for _, m := range pending {
			fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
		}
	case down:
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		fmt.Fprintln(out, "rolled back one migration")
	default:
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Fprintln(out, "migrations applied")
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// healthCheck verifies the database and any enabled side channels.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: nil if all checks pass, joined failures otherwise
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var errs []error
	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
