package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/mqtt"
)

const (
	defaultHealthInterval = 30 * time.Second

	// healthQoS matches the retained status topic.
	healthQoS = 1
)

// HealthStatus is the operational status of the bridge.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published to serial2mqtt/<id>/health.
// QoS 1, retained.
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	MQTTConnected bool `json:"mqtt_connected"`
	DeviceOpen    bool `json:"device_open"`

	// LastDeviceLine is omitted until the device has sent something.
	LastDeviceLine *time.Time `json:"last_device_line,omitempty"`

	Subscriptions int   `json:"subscriptions"`
	Statistics    Stats `json:"statistics"`

	// Reason explains a degraded or stopping status.
	Reason string `json:"reason,omitempty"`
}

// HealthPublisher publishes health messages. Typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource supplies the bridge state that goes into each message.
type HealthSource interface {
	Stats() Stats
	DeviceOpen() bool
	LastDeviceLine() time.Time
	Subscriptions() []string
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval defaults to 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    HealthSource

	// Metrics, if set, receives a counter snapshot on every report.
	Metrics Metrics
}

// HealthReporter publishes bridge health at a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    HealthSource
	metrics   Metrics

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool
	startMu  sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		metrics:   cfg.Metrics,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.started {
		return
	}
	h.started = true

	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "bridge stopping")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Topic returns the topic health messages are published to.
func (h *HealthReporter) Topic() string {
	return mqtt.Topics{}.Health(h.bridgeID)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.report()
		}
	}
}

func (h *HealthReporter) report() {
	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish health", err)
	}
	if h.metrics != nil && h.source != nil {
		h.metrics.WriteBridgeStats(h.bridgeID, h.source.Stats().Map())
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source != nil && !h.source.DeviceOpen() {
		return HealthDegraded, "device stream closed"
	}
	return HealthHealthy, ""
}

// buildMessage snapshots the source into a HealthMessage.
func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.publisher != nil {
		msg.MQTTConnected = h.publisher.IsConnected()
	}
	if h.source != nil {
		msg.DeviceOpen = h.source.DeviceOpen()
		msg.Statistics = h.source.Stats()
		msg.Subscriptions = len(h.source.Subscriptions())
		if last := h.source.LastDeviceLine(); !last.IsZero() {
			utc := last.UTC()
			msg.LastDeviceLine = &utc
		}
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.Topic(), payload, healthQoS, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
