// ComfortClick Bridge
//
// This is the main entry point for the bridge. It logs in to a ComfortClick
// panel, polls its client data once per interval, derives fan, thermostat,
// lock, ventilation and utility-meter entities from the raw values and
// exposes them over:
//   - Home Assistant MQTT discovery (state, availability, commands)
//   - a local REST and WebSocket API for operators
//   - optional InfluxDB telemetry
//
// Every panel write is recorded in a SQLite audit trail.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/comfortclick-bridge/internal/api"
	"github.com/nerrad567/comfortclick-bridge/internal/audit"
	"github.com/nerrad567/comfortclick-bridge/internal/comfortclick"
	"github.com/nerrad567/comfortclick-bridge/internal/coordinator"
	"github.com/nerrad567/comfortclick-bridge/internal/devices"
	"github.com/nerrad567/comfortclick-bridge/internal/entity"
	"github.com/nerrad567/comfortclick-bridge/internal/homeassistant"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/config"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/database"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/comfortclick-bridge/internal/telemetry"
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

// Panel setup retry bounds. The bridge stays up while the panel is
// unreachable and keeps retrying setup with exponential backoff.
const (
	setupRetryInitial = 5 * time.Second
	setupRetryMax     = 5 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ComfortClick bridge",
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

	devCfg, err := devices.Load(cfg.Panel.DevicesFile)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	log.Info("devices loaded",
		"path", cfg.Panel.DevicesFile,
		"fans", len(devCfg.Fans),
		"thermostats", len(devCfg.Thermostats),
		"locks", len(devCfg.Locks),
		"utilities", len(devCfg.Utilities),
		"vent", devCfg.Vent != nil,
	)

	// Open the audit database
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

	if migrateErr := db.Migrate(ctx, database.Embedded); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Panel session. Every write goes through the audit writer.
	client := comfortclick.NewClient(comfortclick.Config{
		Host:     cfg.Panel.Host,
		Username: cfg.Panel.Username,
		Password: cfg.Panel.Password,
		Timeout:  cfg.GetRequestTimeout(),
	}, comfortclick.WithLogger(log))
	auditWriter := audit.NewWriter(client, auditRepo, log)

	// Metrics
	registry := prometheus.NewRegistry()
	coordMetrics := coordinator.NewMetrics()
	apiMetrics := api.NewMetrics()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(coordMetrics.Collectors()...)
	registry.MustRegister(apiMetrics.Collectors()...)

	hub := api.NewHub(cfg.WebSocket, log)
	hub.SetMetrics(apiMetrics)

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

	// Entities emit into fanout. Its members need the built registry, so
	// it is filled in below before anything can emit.
	var fanout entity.Sinks
	entities, err := entity.Build(devCfg, entity.Options{
		Reader: client,
		Writer: auditWriter,
		Sink:   entity.SinkFunc(func(st entity.State) { fanout.StateChanged(st) }),
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("building entities: %w", err)
	}
	log.Info("entities built", "count", entities.Len())

	fanout = entity.Sinks{hub}
	if influxClient != nil {
		fanout = append(fanout, telemetry.NewRecorder(influxClient, entities.All()))
	}

	// Home Assistant over MQTT (optional)
	var mqttClient *mqtt.Client
	var publisher *homeassistant.Publisher
	if cfg.HomeAssistant.Enabled {
		mqttClient, publisher, err = startHomeAssistant(ctx, cfg, entities, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		fanout = append(fanout, publisher)

		// Commands can emit states, so subscribe only once fanout is complete.
		if subErr := publisher.Subscribe(); subErr != nil {
			return fmt.Errorf("subscribing to command topics: %w", subErr)
		}
		if annErr := publisher.Announce(); annErr != nil {
			log.Warn("initial discovery announce incomplete", "error", annErr)
		}
	} else {
		log.Info("Home Assistant MQTT surface disabled")
	}

	// Coordinator. The callback closes over coord, which is set before Start.
	var coord *coordinator.Coordinator
	coord, err = coordinator.New(coordinator.Options{
		Session:  client,
		Interval: cfg.GetPollInterval(),
		CacheLen: client.Cache().Len,
		Logger:   log,
		Metrics:  coordMetrics,
		OnAvailabilityChange: func(available bool) {
			if publisher != nil {
				publisher.SetPanelAvailable(available)
			}
			hub.BroadcastStatus(coord.Status())
		},
		OnSessionEvent: func(event string, err error) {
			auditWriter.RecordSession(ctx, event, err)
		},
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}
	coord.AddListener(entities)

	// Operator API (optional)
	checks := map[string]api.HealthChecker{"database": db}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Entities: entities,
			Values:   client.Cache(),
			Poller:   coord,
			Audit:    auditRepo,
			Gatherer: registry,
			Metrics:  apiMetrics,
			Checks:   checks,
			Hub:      hub,
			Version:  version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return superviseCoordinator(gctx, coord, newSetupBackOff(), log)
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}

	// The panel session is dropped without a logout request.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startHomeAssistant connects to the broker and creates the discovery
// publisher. Discovery and states are re-announced on every broker
// reconnect; the caller subscribes and makes the first announce.
//
// Returns:
//   - *mqtt.Client: Connected client; the caller closes it
//   - *homeassistant.Publisher: Publisher not yet subscribed
//   - error: If the broker is unreachable or the publisher cannot start
func startHomeAssistant(ctx context.Context, cfg *config.Config, entities *entity.Registry, log *logging.Logger) (*mqtt.Client, *homeassistant.Publisher, error) {
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	publisher, err := homeassistant.New(homeassistant.Options{
		Client:   mqttClient,
		Registry: entities,
		Topics:   mqtt.NewTopics(cfg.HomeAssistant.TopicPrefix, cfg.HomeAssistant.DiscoveryPrefix),
		QoS:      byte(cfg.MQTT.QoS),
		Version:  version,
		Logger:   log,
		Context:  ctx,
	})
	if err != nil {
		_ = mqttClient.Close()
		return nil, nil, fmt.Errorf("creating Home Assistant publisher: %w", err)
	}

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, announcing discovery")
		if err := publisher.Announce(); err != nil {
			log.Warn("discovery announce incomplete", "error", err)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	return mqttClient, publisher, nil
}

// newSetupBackOff returns the setup retry policy: exponential from
// setupRetryInitial to setupRetryMax, never giving up on its own.
func newSetupBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = setupRetryInitial
	b.MaxInterval = setupRetryMax
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// superviseCoordinator starts the coordinator, retrying setup on policy
// until it succeeds or ctx ends, then blocks until shutdown and stops the
// poll loop.
//
// Returns:
//   - error: Always nil; a panel that never comes up is not fatal
func superviseCoordinator(ctx context.Context, coord *coordinator.Coordinator, policy backoff.BackOff, log *logging.Logger) error {
	start := func() error {
		if err := coord.Start(ctx); err != nil && !errors.Is(err, coordinator.ErrAlreadyStarted) {
			return err
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn("panel not ready, retrying setup", "error", err, "retry_in", next.String())
	}

	// The setup policy never stops, so only cancellation ends the retries.
	if err := backoff.RetryNotify(start, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil
	}

	<-ctx.Done()
	coord.Stop()
	return nil
}

// getConfigPath returns the configuration file path.
// Uses COMFORTCLICK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("COMFORTCLICK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The panel is not checked here; its availability is reported by the
// coordinator once setup succeeds.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
