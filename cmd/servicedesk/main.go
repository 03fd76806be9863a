// Service desk core: credential sessions and audit trail.
//
// This is the main entry point. It loads configuration, opens the
// credential and audit stores, optionally connects the MQTT audit mirror,
// and serves the HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/servicedesk-core/migrations"

	"github.com/nerrad567/servicedesk-core/internal/api"
	"github.com/nerrad567/servicedesk-core/internal/audit"
	"github.com/nerrad567/servicedesk-core/internal/auth"
	"github.com/nerrad567/servicedesk-core/internal/infrastructure/config"
	"github.com/nerrad567/servicedesk-core/internal/infrastructure/database"
	"github.com/nerrad567/servicedesk-core/internal/infrastructure/logging"
	"github.com/nerrad567/servicedesk-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stores groups the persistence chosen by database.driver.
type stores struct {
	credentials auth.CredentialStore
	audit       audit.Repository
	health      api.HealthChecker
	close       func() error
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting service desk core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"driver", cfg.Database.Driver,
		"level", cfg.Logging.Level,
	)

	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing stores")
		if closeErr := st.close(); closeErr != nil {
			log.Error("error closing stores", "error", closeErr)
		}
	}()

	hasher := auth.ScryptHasher{}
	if _, seedErr := auth.SeedAdmin(ctx, st.credentials, hasher, cfg.Security.BootstrapAdmin.Email, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding bootstrap admin: %w", seedErr)
	}

	sessions, err := auth.NewService(st.credentials, auth.NewHS256(), hasher, auth.SessionConfig{
		AccessSecret:  []byte(cfg.Security.AccessToken.Secret),
		RefreshSecret: []byte(cfg.Security.RefreshToken.Secret),
		AccessTTL:     cfg.Security.AccessToken.TTLDuration(),
		RefreshTTL:    cfg.Security.RefreshToken.TTLDuration(),
	})
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}

	health := map[string]api.HealthChecker{"database": st.health}

	var recorderOpts []audit.Option
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT audit mirror connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		recorderOpts = append(recorderOpts,
			audit.WithMirror(mqttClient, mqttClient.Topics().Audit, byte(cfg.MQTT.QoS)), //nolint:gosec // validated 0..2
		)
		health["mqtt"] = mqttClient
	}

	recorder := audit.NewRecorder(st.audit, log.Logger, recorderOpts...)

	apiServer, err := api.New(api.Deps{
		Config:         cfg.API,
		Logger:         log,
		Sessions:       sessions,
		Audit:          recorder,
		AuditRepo:      st.audit,
		Health:         health,
		MetricsEnabled: cfg.Metrics.Enabled,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("service desk core started")

	<-ctx.Done()
	log.Info("shutdown signal received")

	return nil
}

// openStores builds the credential store and audit repository for driver.
// SQL drivers run migrations before returning.
func openStores(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*stores, error) {
	if cfg.Driver == config.DriverMemory {
		creds := auth.NewMemoryCredentialStore()
		log.Warn("using in-memory stores; credentials and audit entries are lost on restart")
		return &stores{
			credentials: creds,
			audit:       audit.NewMemoryRepository(),
			health:      creds,
			close:       func() error { return nil },
		}, nil
	}

	dialect := database.DialectSQLite
	if cfg.Driver == config.DriverPostgres {
		dialect = database.DialectPostgres
	}

	db, err := database.Open(ctx, database.Config{
		Dialect:     dialect,
		Path:        cfg.Path,
		DSN:         cfg.DSN,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("running migrations: %w", err), db.Close())
	}
	log.Info("database ready", "dialect", string(dialect))

	return &stores{
		credentials: auth.NewSQLCredentialStore(db.DB, dialect),
		audit:       audit.NewSQLRepository(db.DB, dialect),
		health:      db,
		close:       db.Close,
	}, nil
}

// getConfigPath returns the configuration file path.
// Uses SERVICEDESK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SERVICEDESK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
