// Gray Gate - Network Controller Mirror
//
// This is the main entry point for the Gray Gate application. Gray Gate
// keeps a local, continuously reconciled mirror of a remote network
// controller's configuration objects (port forwards, firewall policies,
// traffic rules and routes, wireless networks) and exposes them to home
// automation consumers over MQTT: change events, retained state, and
// command topics for toggling resources.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-gate/migrations"

	"github.com/nerrad567/gray-gate/internal/api"
	"github.com/nerrad567/gray-gate/internal/catalog"
	"github.com/nerrad567/gray-gate/internal/controller"
	"github.com/nerrad567/gray-gate/internal/infrastructure/config"
	"github.com/nerrad567/gray-gate/internal/infrastructure/database"
	"github.com/nerrad567/gray-gate/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-gate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-gate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-gate/internal/mirror"
	"github.com/nerrad567/gray-gate/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Gate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise representation registry
	repRegistry := registry.NewRegistry(registry.NewSQLiteRepository(db.DB))
	repRegistry.SetLogger(log)
	if refreshErr := repRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading representation registry: %w", refreshErr)
	}
	log.Info("representation registry initialised", "representations", repRegistry.Count())

	// Connect to MQTT broker
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
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

	// Controller client
	ctrl := controller.New(cfg.Controller)
	ctrl.SetLogger(log)
	log.Info("controller client initialised",
		"url", cfg.Controller.BaseURL(),
		"site", cfg.Controller.Site,
	)

	// Reconciliation engine
	specs := catalog.Default()
	scheduler := mirror.NewScheduler(mirror.SchedulerConfig{
		BaseInterval:     cfg.Mirror.GetBaseInterval(),
		ActiveInterval:   cfg.Mirror.GetActiveInterval(),
		RealtimeInterval: cfg.Mirror.GetRealtimeInterval(),
		ActivityTimeout:  cfg.Mirror.GetActivityTimeout(),
		DebounceWindow:   cfg.Mirror.GetDebounceWindow(),
	}, log)

	dispatcher := mirror.NewDispatcher(mqttClient, mqtt.Topics{}, byte(cfg.MQTT.QoS), log)
	if influxClient != nil {
		dispatcher.SetHistory(influxClient)
	}

	var cycles mirror.CycleRecorder
	if influxClient != nil {
		cycles = influxClient
	}

	coordinator, err := mirror.NewCoordinator(mirror.CoordinatorOptions{
		Fetcher:          ctrl,
		Registrations:    catalog.Registrations(specs),
		Registry:         &registryAdapter{registry: repRegistry},
		Dispatcher:       dispatcher,
		Scheduler:        scheduler,
		Logger:           log,
		Platform:         registry.Platform,
		OptimisticExpiry: cfg.Mirror.GetOptimisticExpiry(),
		Reauth:           &reauthNotifier{logger: log},
		Cycles:           cycles,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	// Command intake: local mutations arrive on the bus and are pushed to
	// the controller, with optimistic state bridging the confirmation gap.
	router := newCommandRouter(specs, ctrl, coordinator, log)
	topics := mqtt.Topics{}
	if err := mqttClient.Subscribe(topics.AllCommands(), byte(cfg.MQTT.QoS), router.Handle); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}
	log.Info("command intake subscribed", "topic", topics.AllCommands())

	// Ops API (optional)
	if cfg.API.Enabled {
		health := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			health["influxdb"] = influxClient
		}

		apiServer, err := api.New(api.Deps{
			Config:      cfg.API,
			Logger:      log,
			Registry:    repRegistry,
			Coordinator: coordinator,
			Version:     version,
			Health:      health,
		})
		if err != nil {
			return fmt.Errorf("creating ops API: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting ops API: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing ops API", "error", closeErr)
			}
		}()
	} else {
		log.Info("ops API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Kick off the first cycle immediately so the baseline is established
	// without waiting a full base interval.
	scheduler.Reschedule(0)

	log.Info("initialisation complete, reconciliation running",
		"types", len(specs),
		"base_interval", cfg.Mirror.GetBaseInterval().String(),
	)

	// Run the reconciliation loops until shutdown.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return scheduler.Run(groupCtx) })
	group.Go(func() error { return coordinator.Run(groupCtx) })

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reconciliation stopped: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Gate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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
	return nil
}

// registryAdapter narrows the representation registry to the interface the
// reconciliation engine needs.
type registryAdapter struct {
	registry *registry.Registry
}

func (a *registryAdapter) Lookup(ctx context.Context, domain, platform, id string) (bool, error) {
	return a.registry.Lookup(ctx, domain, platform, id)
}

func (a *registryAdapter) Register(ctx context.Context, rep mirror.Representation) error {
	return a.registry.Register(ctx, &registry.Representation{
		ID:       rep.ID,
		Type:     string(rep.Type),
		Name:     rep.Name,
		ParentID: nullableString(rep.ParentID),
		Domain:   rep.Domain,
		Platform: registry.Platform,
		State:    rep.State,
	})
}

func (a *registryAdapter) Deregister(ctx context.Context, id string) error {
	return a.registry.Deregister(ctx, id)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// reauthNotifier surfaces authentication failures. Controller access uses
// a static API key, so there is nothing to refresh automatically; the
// operator has to rotate the key in configuration.
type reauthNotifier struct {
	logger *logging.Logger
}

func (r *reauthNotifier) RequestReauth(context.Context) {
	r.logger.Error("controller rejected credentials; update controller.api_key and restart")
}
