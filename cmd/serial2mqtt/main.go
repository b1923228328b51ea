// serial2mqtt bridges a serial device to an MQTT broker.
//
// The device speaks a line-oriented JSON frame protocol: it asks the bridge
// to subscribe and publish on its behalf, and receives broker messages back
// as publish frames. See internal/protocol for the wire format.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/bridge"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/database"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/influxdb"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/logging"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/mqtt"
	"github.com/ncmreynolds/serial2mqtt/internal/journal"
	"github.com/ncmreynolds/serial2mqtt/internal/streamio"
	"github.com/ncmreynolds/serial2mqtt/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/serial2mqtt.yaml"

	// pruneInterval is how often expired journal entries are removed.
	pruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting serial2mqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("bridge_id", cfg.Bridge.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Journal (optional)
	var repo *journal.SQLiteRepository
	if cfg.Journal.Enabled {
		db, err := openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		repo = journal.NewSQLiteRepository(db.DB)
		log.Info("journal ready", "path", db.Path(), "run_id", repo.RunID())

		if retention := cfg.GetRetention(); retention > 0 {
			go pruneJournal(ctx, repo, retention, log)
		}
	} else {
		log.Info("journal disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
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
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"status_topic", mqttClient.StatusTopic(),
	)

	// Serial stream
	log.Info("opening device stream", "url", cfg.Serial.URL)
	device, err := streamio.Open(ctx, cfg.Serial.URL)
	if err != nil {
		return fmt.Errorf("opening device stream: %w", err)
	}

	b, err := bridge.NewBridge(bridge.Options{
		Config:  cfg,
		MQTT:    mqttClient,
		Device:  device,
		Journal: optionalJournal(repo),
		Metrics: optionalMetrics(influxClient),
		Logger:  log.With("component", "bridge"),
		Version: version,
	})
	if err != nil {
		device.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		device.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer b.Stop()

	// The initial connect happened before the bridge existed; announce it now
	// and on every reconnect.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		b.OnBrokerConnect()
	})
	if mqttClient.IsConnected() {
		b.OnBrokerConnect()
	}

	log.Info("initialisation complete, relaying")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-b.DeviceClosed():
		log.Warn("device stream ended, shutting down")
	}

	stats := b.Stats()
	linkStats := mqttClient.Stats()
	log.Info("serial2mqtt stopped",
		"lines", stats.Lines,
		"published", stats.Published,
		"forwarded", stats.Forwarded,
		"mqtt_connects", linkStats.Connects,
		"mqtt_connection_losses", linkStats.ConnectionLosses,
		"mqtt_handler_errors", linkStats.HandlerErrors,
	)
	return nil
}

// getConfigPath returns SERIAL2MQTT_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("SERIAL2MQTT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openJournal opens and migrates the journal database.
func openJournal(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.Journal.Database())
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := db.HealthCheck(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("journal health check: %w", err)
	}

	log.Info("journal migrations complete")
	return db, nil
}

// pruneJournal deletes entries older than retention until ctx is done.
func pruneJournal(ctx context.Context, repo journal.Repository, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		removed, err := repo.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil:
			log.Warn("journal prune failed", "error", err)
		case removed > 0:
			log.Info("journal pruned", "removed", removed, "retention", retention.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// optionalJournal avoids handing the bridge a typed nil interface.
func optionalJournal(repo *journal.SQLiteRepository) bridge.Journal {
	if repo == nil {
		return nil
	}
	return repo
}

func optionalMetrics(client *influxdb.Client) bridge.Metrics {
	if client == nil {
		return nil
	}
	return client
}
