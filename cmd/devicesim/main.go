// devicesim is a simulated serial device for exercising a serial2mqtt bridge.
//
// It opens the configured stream, subscribes to the device topics, polls the
// session and logs every message it receives. While the bridge link is online
// it publishes an incrementing counter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/indicator"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/logging"
	"github.com/ncmreynolds/serial2mqtt/internal/session"
	"github.com/ncmreynolds/serial2mqtt/internal/streamio"
)

var version = "dev"

const defaultConfigPath = "configs/devicesim.toml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version).With("component", "devicesim")
	log.Info("configuration loaded", "path", configPath, "serial_url", cfg.Serial.URL)

	rwc, err := streamio.Open(ctx, cfg.Serial.URL)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	conn := streamio.NewConn(rwc, cfg.Serial.Backlog)
	defer func() {
		st := conn.Stats()
		log.Info("closing stream",
			"bytes_read", st.BytesRead,
			"bytes_written", st.BytesWritten,
			"bytes_dropped", st.BytesDropped)
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("error closing stream", "error", closeErr)
		}
	}()

	sim := newSimulator(cfg, conn, session.SystemClock{}, log)
	sim.begin()

	ticker := time.NewTicker(cfg.GetPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st := sim.session.Stats()
			log.Info("devicesim stopped", "ticks", st.Ticks, "delivered", st.Delivered, "published", sim.counter)
			return nil
		case <-ticker.C:
		}

		sim.step()

		if err := conn.Err(); err != nil && !conn.Available() {
			if errors.Is(err, io.EOF) {
				log.Info("bridge closed the stream")
				return nil
			}
			return fmt.Errorf("stream failed: %w", err)
		}
	}
}

// getConfigPath returns SERIAL2MQTT_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("SERIAL2MQTT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// simulator drives one Session the way device firmware would: a poll loop
// calling Housekeeping, draining the inbox and publishing while online.
type simulator struct {
	session *session.Session
	clock   session.Clock
	log     *logging.Logger

	subscriptions   []string
	publishTopic    string
	publishInterval time.Duration
	lastPublish     time.Time

	counter  uint32
	received uint64
}

func newSimulator(cfg *config.Config, stream session.Stream, clock session.Clock, log *logging.Logger) *simulator {
	s := session.New(session.Config{
		Stream:           stream,
		Clock:            clock,
		Encoding:         cfg.DeviceEncoding(),
		LoopbackTopic:    cfg.Device.LoopbackTopic,
		LoopbackInterval: cfg.GetLoopbackInterval(),
		StrictSequence:   cfg.Device.StrictSequence,
		StrictFrames:     cfg.Device.StrictFrames,
		Debug:            cfg.Device.Debug,
		DiagnosticPrefix: cfg.Device.DiagnosticPrefix,
		Logger:           log,
	})
	s.StatusIndicator(indicator.OutputFunc(func(on bool) {
		log.Debug("status indicator", "on", on)
	}))

	return &simulator{
		session:         s,
		clock:           clock,
		log:             log,
		subscriptions:   cfg.Device.Subscriptions,
		publishTopic:    cfg.Device.PublishTopic,
		publishInterval: cfg.GetPublishInterval(),
		lastPublish:     clock.Now(),
	}
}

// begin subscribes the configured topics.
func (sim *simulator) begin() {
	for _, topic := range sim.subscriptions {
		sim.session.Subscribe(topic)
	}
	sim.log.Info("device started",
		"encoding", sim.session.Encoding().String(),
		"subscriptions", len(sim.subscriptions),
		"publish_topic", sim.publishTopic)
}

// step runs one poll iteration.
func (sim *simulator) step() {
	sim.session.Housekeeping()

	if sim.session.MessageWaiting() {
		sim.received++
		if sim.session.MessageIsNumber() {
			sim.log.Info("message received",
				"topic", sim.session.Topic(),
				"value", sim.session.MessageInt())
		} else {
			sim.log.Info("message received",
				"topic", sim.session.Topic(),
				"message", sim.session.Message())
		}
		sim.session.MarkMessageRead()
	}

	if sim.publishTopic == "" || !sim.session.Online() {
		return
	}
	now := sim.clock.Now()
	if now.Sub(sim.lastPublish) < sim.publishInterval {
		return
	}
	sim.lastPublish = now
	sim.session.Publish(sim.publishTopic, sim.counter)
	sim.counter++
}
