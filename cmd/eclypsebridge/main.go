// Eclypse Bridge - BACnet property cache for Distech Eclypse controllers
//
// This is the main entry point for the bridge service. It polls the
// controller's REST interface in batched read-property-multiple cycles and
// republishes the cached values over MQTT, InfluxDB and an HTTP/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/eclypse-bridge/internal/api"
	"github.com/nerrad567/eclypse-bridge/internal/audit"
	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/database"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
	"github.com/nerrad567/eclypse-bridge/migrations"
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

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Eclypse bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	entryRepo := entry.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	wizardMgr, err := wizard.NewManager(wizard.ManagerOptions{
		Factory: wizard.ClientFactory(clientOptions(cfg, log)),
		Store:   entryRepo,
		OnCreated: func(e *entry.Entry) {
			log.Info("config entry created", "entry_id", e.ID, "host", e.Host, "objects", len(e.Objects))
		},
	})
	if err != nil {
		return fmt.Errorf("creating setup wizard: %w", err)
	}

	ent, err := resolveEntry(ctx, cfg, entryRepo, wizardMgr)
	if err != nil {
		return fmt.Errorf("resolving controller: %w", err)
	}

	var bridge *eclypse.Bridge
	if ent != nil {
		bridge, err = startBridge(ctx, cfg, ent, mqttClient, influxClient, auditRepo, log)
		if err != nil {
			return fmt.Errorf("starting Eclypse bridge: %w", err)
		}
		defer func() {
			log.Info("stopping Eclypse bridge")
			bridge.Stop()
		}()
	} else {
		log.Warn("no controller configured, serving setup wizard only")
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Wizard:  wizardMgr,
			Entries: entryRepo,
			Audit:   auditRepo,
			DB:      db,
			Version: version,
		}
		if bridge != nil {
			deps.Bridge = bridge
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, bridge, InfluxDB, MQTT,
	// database.

	log.Info("Eclypse bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ECLYPSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ECLYPSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// clientOptions returns the controller client settings shared by the bridge
// and the setup wizard. Address and login are filled in per controller.
func clientOptions(cfg *config.Config, log *logging.Logger) eclypse.ClientOptions {
	return eclypse.ClientOptions{
		Timeout:   cfg.GetRequestTimeout(),
		VerifyTLS: cfg.Controller.VerifyTLS,
		Retry: eclypse.RetryPolicy{
			MaxAttempts:    cfg.Controller.Retry.MaxAttempts,
			InitialBackoff: cfg.GetRetryInitialBackoff(),
			MaxBackoff:     cfg.GetRetryMaxBackoff(),
		},
		Logger: log.Component("eclypse-client"),
	}
}

// startBridge builds a controller client from a config entry and starts
// polling it.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	ent *entry.Entry,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	auditRepo audit.Repository,
	log *logging.Logger,
) (*eclypse.Bridge, error) {
	reg, err := ent.Registry()
	if err != nil {
		return nil, err
	}

	opts := clientOptions(cfg, log)
	opts.Host = ent.Host
	opts.Username = ent.Username
	opts.Password = ent.Password
	opts.Registry = reg
	client, err := eclypse.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	bridgeOpts := eclypse.BridgeOptions{
		Device:          ent.DeviceName,
		Client:          client,
		MQTT:            mqttClient,
		Info:            eclypse.DeviceInfoFromMap(ent.DeviceInfo),
		Version:         version,
		PollInterval:    cfg.GetPollInterval(),
		HealthInterval:  cfg.GetHealthInterval(),
		Discovery:       cfg.Bridge.Discovery,
		DiscoveryPrefix: cfg.Bridge.DiscoveryPrefix,
		Logger:          log.Component("eclypse"),
		Audit:           auditRepo,
	}
	// A nil *influxdb.Client must not reach the interface field.
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
	}

	bridge, err := eclypse.NewBridge(bridgeOpts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}

	log.Info("Eclypse bridge started",
		"entry_id", ent.ID,
		"host", ent.Host,
		"device", ent.DeviceName,
		"objects", reg.Len(),
		"poll_interval", cfg.GetPollInterval(),
	)
	return bridge, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient and apiServer may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	// The controller itself is not checked here: the bridge reports its
	// reachability on the health topic and keeps polling while it is down.

	return nil
}
