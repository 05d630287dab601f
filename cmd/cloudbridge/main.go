// Cloudbridge keeps a local, always-current view of cloud-managed smart
// home devices.
//
// It polls the vendor REST API for the full device list, merges server-push
// events between polls, and republishes the reconciled table on MQTT. Device
// commands arrive on MQTT, are sent to the cloud, and are acknowledged once
// the device table confirms them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/api"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/bridge"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
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

// metricSet groups the collectors of every component so they share one
// registry.
type metricSet struct {
	cloud       *cloud.Metrics
	stream      *stream.Metrics
	coordinator *coordinator.Metrics
	pending     *pending.Metrics
	bridge      *bridge.Metrics
}

func newMetricSet(reg prometheus.Registerer) (*metricSet, error) {
	m := &metricSet{
		cloud:       cloud.NewMetrics(),
		stream:      stream.NewMetrics(),
		coordinator: coordinator.NewMetrics(),
		pending:     pending.NewMetrics(),
		bridge:      bridge.NewMetrics(),
	}

	var all []prometheus.Collector
	all = append(all,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	all = append(all, m.cloud.Collectors()...)
	all = append(all, m.stream.Collectors()...)
	all = append(all, m.coordinator.Collectors()...)
	all = append(all, m.pending.Collectors()...)
	all = append(all, m.bridge.Collectors()...)

	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return m, nil
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting cloudbridge",
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

	registry := prometheus.NewRegistry()
	metrics, err := newMetricSet(registry)
	if err != nil {
		return err
	}

	// Cloud API client
	cloudClient, err := cloud.New(cfg.Cloud,
		cloud.WithLogger(log.With("component", "cloud")),
		cloud.WithMetrics(metrics.cloud),
	)
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}
	if err := cloudClient.ValidateAPIKey(ctx); err != nil {
		return fmt.Errorf("validating API key: %w", err)
	}
	log.Info("cloud API key validated",
		"api_url", cfg.Cloud.APIURL,
		"api_key", logging.MaskSecret(cfg.Cloud.APIKey),
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

	// Coordinator with its push stream
	coord := coordinator.New(cloudClient,
		newStreamFactory(cfg, metrics.stream, log),
		coordinator.Config{
			PollInterval:     cfg.GetPollInterval(),
			MaxRateLimitWait: cfg.GetMaxRateLimitWait(),
		},
		coordinatorOptions(log, metrics.coordinator, influxClient)...,
	)
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	defer func() {
		log.Info("stopping coordinator")
		coord.Stop()
	}()

	// MQTT bridge (optional)
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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		b, err := startBridge(ctx, cfg, coord, cloudClient, mqttClient, influxClient, metrics, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			b.Stop()
		}()
	} else {
		log.Info("MQTT bridge disabled")
	}

	// Read-only HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api"),
			WebSocket: cfg.WebSocket,
			Source:    coord,
			Gatherer:  registry,
			Version:   version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		srv, err := api.New(deps)
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
	} else {
		log.Info("HTTP API disabled")
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", len(coord.Table()),
		"stream", coord.StreamState().Status.String(),
	)

	<-ctx.Done()

	// Deferred calls run in reverse order: API, bridge, MQTT,
	// coordinator, InfluxDB.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newStreamFactory binds the push stream to the coordinator's handler.
func newStreamFactory(cfg *config.Config, m *stream.Metrics, log *logging.Logger) coordinator.StreamFactory {
	return func(handler func(kind, deviceID string, payload map[string]any)) (coordinator.Stream, error) {
		s, err := stream.New(cfg.Stream, cfg.Cloud.APIKey, handler,
			stream.WithLogger(log.With("component", "stream")),
			stream.WithMetrics(m),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func coordinatorOptions(log *logging.Logger, m *coordinator.Metrics, influxClient *influxdb.Client) []coordinator.Option {
	opts := []coordinator.Option{
		coordinator.WithLogger(log.With("component", "coordinator")),
		coordinator.WithMetrics(m),
	}
	if influxClient != nil {
		opts = append(opts, coordinator.WithTelemetry(influxClient))
	}
	return opts
}

// startBridge creates and starts the MQTT bridge.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	coord *coordinator.Coordinator,
	cloudClient *cloud.Client,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	metrics *metricSet,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	opts := bridge.Options{
		MQTT:      mqttClient,
		Topics:    mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		Source:    coord,
		Commander: cloudClient,
		Pending: pending.Config{
			Timeout: cfg.GetPendingTimeout(),
			Metrics: metrics.pending,
		},
		HealthInterval: cfg.GetHealthInterval(),
		ClientID:       cfg.MQTT.Broker.ClientID,
		Version:        version,
		Metrics:        metrics.bridge,
		Logger:         log.With("component", "bridge"),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	b, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started", "topic_prefix", cfg.MQTT.TopicPrefix)
	return b, nil
}

// getConfigPath returns the configuration file path.
// Uses CLOUDBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLOUDBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the optional infrastructure connections concurrently.
// Either client may be nil when disabled.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	g, gctx := errgroup.WithContext(ctx)

	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("mqtt: %w", err)
			}
			return nil
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
