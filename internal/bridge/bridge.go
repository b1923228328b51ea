package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/mqtt"
	"github.com/ncmreynolds/serial2mqtt/internal/journal"
	"github.com/ncmreynolds/serial2mqtt/internal/protocol"
)

const (
	// minLineLength is the smallest read buffer bufio accepts.
	minLineLength = 16

	// defaultLineLength applies when the configuration leaves it unset.
	defaultLineLength = 4096

	// journalTimeout bounds a single journal insert.
	journalTimeout = 2 * time.Second

	// relayQoS is used for every relayed subscribe and publish.
	relayQoS = 0
)

// Bridge relays frames between one serial device and the MQTT broker.
type Bridge struct {
	cfg      *config.Config
	encoding protocol.Encoding
	decoder  protocol.Decoder
	maxLine  int
	version  string

	mqtt    MQTTClient
	device  io.ReadWriter
	journal Journal
	metrics Metrics
	health  *HealthReporter

	// Device writes come from the read loop, MQTT handlers and the
	// connect callback.
	writeMu sync.Mutex

	subscribed map[string]bool
	subMu      sync.Mutex

	stats      counters
	lastLine   atomic.Int64 // unix nanoseconds, 0 before the first line
	deviceOpen atomic.Bool
	started    atomic.Bool

	// Shutdown coordination
	done       chan struct{}
	readerDone chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
	ctx        context.Context
	ctxCancel  context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Journal records relayed frames. Satisfied by *journal.SQLiteRepository.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Metrics receives traffic points. Satisfied by *influxdb.Client.
type Metrics interface {
	WriteFrame(bridgeID, direction, kind, topic string, size int)
	WriteBridgeStats(bridgeID string, counters map[string]uint64)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds everything needed to build a Bridge.
type Options struct {
	// Config is the loaded configuration. Required.
	Config *config.Config

	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// Device is the serial stream. Required. If it is also an io.Closer,
	// Stop closes it to unblock the reader.
	Device io.ReadWriter

	// Journal is optional.
	Journal Journal

	// Metrics is optional.
	Metrics Metrics

	// Logger is optional.
	Logger Logger

	// Version is reported in health messages.
	Version string
}

// NewBridge validates opts and builds a bridge. Call Start to begin relaying.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, ErrMissingConfig
	}
	if opts.MQTT == nil {
		return nil, ErrMissingMQTT
	}
	if opts.Device == nil {
		return nil, ErrMissingDevice
	}

	maxLine := opts.Config.Bridge.MaxLineLength
	if maxLine == 0 {
		maxLine = defaultLineLength
	}
	if maxLine < minLineLength {
		maxLine = minLineLength
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        opts.Config,
		encoding:   opts.Config.BridgeEncoding(),
		maxLine:    maxLine,
		version:    opts.Version,
		mqtt:       opts.MQTT,
		device:     opts.Device,
		journal:    opts.Journal,
		metrics:    opts.Metrics,
		subscribed: make(map[string]bool),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetStatusInterval(),
		Publisher: opts.MQTT,
		Source:    b,
		Metrics:   opts.Metrics,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start launches the device reader and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.deviceOpen.Store(true)
	b.wg.Add(1)
	go b.readLoop()

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"encoding", b.encoding.String(),
		"max_line_length", b.maxLine)
	return nil
}

// Stop shuts the bridge down. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		if c, ok := b.device.(io.Closer); ok {
			if err := c.Close(); err != nil {
				b.logError("closing device", err)
			}
		}

		b.health.Stop()
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// DeviceClosed is closed once the device reader has exited, either because
// the stream ended or because the bridge was stopped. Before Start it never
// closes.
func (b *Bridge) DeviceClosed() <-chan struct{} {
	return b.readerDone
}

// DeviceOpen reports whether the device reader is running.
func (b *Bridge) DeviceOpen() bool {
	return b.deviceOpen.Load()
}

// LastDeviceLine returns when the last line arrived from the device, or the
// zero time if none has.
func (b *Bridge) LastDeviceLine() time.Time {
	ns := b.lastLine.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// OnBrokerConnect tells the device the broker connection is up. Register it
// with the MQTT client's SetOnConnect.
func (b *Bridge) OnBrokerConnect() {
	b.stats.connects.Add(1)
	b.writeDevice(protocol.EncodeConnect())
	b.logInfo("broker connected, notified device")
}

// Subscriptions returns the topics subscribed on behalf of the device.
func (b *Bridge) Subscriptions() []string {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	topics := make([]string, 0, len(b.subscribed))
	for t := range b.subscribed {
		topics = append(topics, t)
	}
	return topics
}

// readLoop reads device lines until the stream ends. Lines longer than
// maxLine are discarded whole.
func (b *Bridge) readLoop() {
	defer b.wg.Done()
	defer close(b.readerDone)
	defer b.deviceOpen.Store(false)

	r := bufio.NewReaderSize(b.device, b.maxLine)
	discarding := false

	for {
		chunk, err := r.ReadSlice('\n')
		switch {
		case err == nil:
			if discarding {
				discarding = false
				continue
			}
			b.handleLine(string(chunk))
		case errors.Is(err, bufio.ErrBufferFull):
			if !discarding {
				b.stats.oversized.Add(1)
				b.logWarn("device line too long, discarding", "limit", b.maxLine)
			}
			discarding = true
		default:
			if len(chunk) > 0 && !discarding {
				b.handleLine(string(chunk))
			}
			b.readerExited(err)
			return
		}
	}
}

func (b *Bridge) readerExited(err error) {
	select {
	case <-b.done:
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		b.logInfo("device stream closed")
		return
	}
	b.logError("device read failed", err)
}

// handleLine routes one line from the device.
func (b *Bridge) handleLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	b.stats.lines.Add(1)
	b.lastLine.Store(time.Now().UnixNano())

	if prefix := b.cfg.Bridge.DiagnosticPrefix; prefix != "" && strings.HasPrefix(line, prefix) {
		b.handleDiagnostic(strings.TrimPrefix(line, prefix))
		return
	}

	if protocol.IsKeepAlive(line) {
		b.stats.keepAlives.Add(1)
		return
	}

	cmd, err := b.decoder.Decode(line)
	switch {
	case errors.Is(err, protocol.ErrNoCommand):
		b.handleDiagnostic(line)
		return
	case err != nil:
		b.stats.malformed.Add(1)
		b.logWarn("malformed frame from device", "line", line, "error", err)
		return
	}

	switch cmd.Kind {
	case protocol.KindSubscribe:
		b.handleSubscribe(cmd.Topic)
	case protocol.KindPublish:
		b.handlePublish(cmd.Topic, cmd.Message)
	default:
		b.stats.ignored.Add(1)
		b.logWarn("unexpected command from device", "kind", cmd.Kind.String(), "name", cmd.Name)
	}
}

func (b *Bridge) handleDiagnostic(text string) {
	b.stats.diagnostics.Add(1)
	b.logDebug("device diagnostic", "text", text)

	if !b.cfg.Bridge.PublishDiagnostics || !b.mqtt.IsConnected() {
		return
	}
	topic := mqtt.Topics{}.Diagnostics(b.cfg.Bridge.ID)
	if err := b.mqtt.Publish(topic, []byte(text), relayQoS, false); err != nil {
		b.logDebug("diagnostic publish failed", "error", err)
	}
}

// handleSubscribe subscribes once per topic; repeats from the device are
// absorbed.
func (b *Bridge) handleSubscribe(topic string) {
	b.subMu.Lock()
	if b.subscribed[topic] {
		b.subMu.Unlock()
		b.stats.duplicateSubscribes.Add(1)
		b.logDebug("already subscribed", "topic", topic)
		return
	}
	b.subMu.Unlock()

	if err := mqtt.ValidateTopicFilter(topic); err != nil {
		b.stats.subscribeErrors.Add(1)
		b.logWarn("device asked for an invalid subscription", "topic", topic, "error", err)
		return
	}
	if err := b.mqtt.Subscribe(topic, relayQoS, b.forward); err != nil {
		b.stats.subscribeErrors.Add(1)
		b.logError("subscribe failed", err, "topic", topic)
		return
	}

	b.subMu.Lock()
	b.subscribed[topic] = true
	b.subMu.Unlock()

	b.stats.subscribes.Add(1)
	b.logInfo("subscribed for device", "topic", topic)
	b.record(journal.Upstream, protocol.KindSubscribe, topic, "")
}

func (b *Bridge) handlePublish(topic, message string) {
	if err := mqtt.ValidateTopicName(topic); err != nil {
		b.stats.publishErrors.Add(1)
		b.logWarn("device published to an invalid topic", "topic", topic, "error", err)
		return
	}
	if err := b.mqtt.Publish(topic, []byte(message), relayQoS, false); err != nil {
		b.stats.publishErrors.Add(1)
		b.logWarn("publish failed", "topic", topic, "error", err)
		return
	}
	b.stats.published.Add(1)
	b.logDebug("published for device", "topic", topic, "message", message)
	b.record(journal.Upstream, protocol.KindPublish, topic, message)
}

// forward writes a broker message down to the device. It runs on the MQTT
// client's handler goroutines.
func (b *Bridge) forward(topic string, payload []byte) error {
	message := string(payload)
	if strings.ContainsAny(message, "\"\r\n") || strings.ContainsAny(topic, "\"\r\n") {
		b.stats.rejected.Add(1)
		return fmt.Errorf("%w: topic %q", ErrUnsafePayload, topic)
	}

	if !b.writeDevice(protocol.EncodePublish(b.encoding, topic, message)) {
		return nil
	}
	b.stats.forwarded.Add(1)
	b.record(journal.Downstream, protocol.KindPublish, topic, message)
	return nil
}

// writeDevice writes s to the device and reports whether it succeeded.
func (b *Bridge) writeDevice(s string) bool {
	b.writeMu.Lock()
	_, err := io.WriteString(b.device, s)
	b.writeMu.Unlock()

	if err != nil {
		b.stats.writeErrors.Add(1)
		b.logError("device write failed", err)
		return false
	}
	return true
}

// record hands a relayed frame to the journal and metrics, if configured.
func (b *Bridge) record(dir journal.Direction, kind protocol.Kind, topic, message string) {
	if b.metrics != nil {
		b.metrics.WriteFrame(b.cfg.Bridge.ID, string(dir), kind.String(), topic, len(message))
	}
	if b.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, journalTimeout)
	defer cancel()

	err := b.journal.Record(ctx, journal.Entry{
		Direction: dir,
		Kind:      kind.String(),
		Topic:     topic,
		Message:   message,
	})
	if err != nil {
		b.stats.journalErrors.Add(1)
		b.logWarn("journal write failed", "topic", topic, "error", err)
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
