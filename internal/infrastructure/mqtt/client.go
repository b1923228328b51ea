package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
)

// Client is the bridge's connection to the broker.
//
// It owns the retained status topic for one bridge: "online" after every
// connect, "offline" on Close, and the same "offline" as the LWT when the
// process dies. Subscriptions made through it survive reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	bridgeID string

	statusTopic string

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected atomic.Bool
	stats     clientCounters

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the subset of logging.Logger the client writes to.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one broker message. It runs on a paho goroutine
// and should return quickly. A returned error is logged and counted.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	filter  string
	qos     byte
	handler MessageHandler
}

// Stats holds connection and delivery counters.
type Stats struct {
	Connects         uint64 `json:"connects"`
	ConnectionLosses uint64 `json:"connection_losses"`
	Received         uint64 `json:"received"`
	HandlerErrors    uint64 `json:"handler_errors"`
	HandlerPanics    uint64 `json:"handler_panics"`
	RestoreFailures  uint64 `json:"restore_failures"`
}

type clientCounters struct {
	connects         atomic.Uint64
	connectionLosses atomic.Uint64
	received         atomic.Uint64
	handlerErrors    atomic.Uint64
	handlerPanics    atomic.Uint64
	restoreFailures  atomic.Uint64
}

// Connect dials the broker and waits for the first connection.
//
// The status topic is serial2mqtt/{bridgeID}/status. Its LWT is registered
// before dialling so a crash at any point after this call is visible.
// Reconnects afterwards are automatic.
func Connect(cfg config.MQTTConfig, bridgeID string) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		bridgeID:      bridgeID,
		statusTopic:   Topics{}.Status(bridgeID),
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.statusTopic, statusPayload(statusOffline, reasonUnexpected, bridgeID, cfg.Broker.ClientID, time.Now()))

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.logWarn("MQTT reconnecting", "broker", cfg.Broker.Host, "port", cfg.Broker.Port)
	})

	c.client = pahomqtt.NewClient(opts)
	if err := await(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		c.client.Disconnect(0)
		return nil, err
	}

	// The connect handler runs on its own goroutine and may lag behind the
	// token; IsConnected must already be true when Connect returns.
	c.connected.Store(true)
	return c, nil
}

// await waits for token and wraps a timeout or failure in sentinel.
func await(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.stats.connects.Add(1)

	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	c.stats.connectionLosses.Add(1)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// publishStatus writes the retained status without waiting for the broker.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := statusPayload(status, reason, c.bridgeID, c.cfg.Broker.ClientID, time.Now())
	return c.client.Publish(c.statusTopic, statusQoS, true, payload)
}

// StatusTopic returns the retained status and LWT topic.
func (c *Client) StatusTopic() string {
	return c.statusTopic
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connects:         c.stats.connects.Load(),
		ConnectionLosses: c.stats.connectionLosses.Load(),
		Received:         c.stats.received.Load(),
		HandlerErrors:    c.stats.handlerErrors.Load(),
		HandlerPanics:    c.stats.handlerPanics.Load(),
		RestoreFailures:  c.stats.restoreFailures.Load(),
	}
}

// Close publishes a graceful offline status, when connected, and
// disconnects. Calling it on an unconnected client is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(statusOffline, reasonShutdown).WaitTimeout(defaultOperationTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known link state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run after every connect and reconnect, once
// subscriptions are restored and the online status is sent.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback run when the link is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for handler failures and reconnects.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logWarn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Error(msg, args...)
	}
}

// wrapHandler adapts a MessageHandler to paho, counting deliveries and
// recovering panics so one bad message cannot kill the router goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.stats.received.Add(1)
		defer func() {
			if r := recover(); r != nil {
				c.stats.handlerPanics.Add(1)
				c.logError("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.stats.handlerErrors.Add(1)
			c.logWarn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
