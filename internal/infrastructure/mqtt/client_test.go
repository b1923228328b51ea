package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Tests that need a live broker live in integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "serial2mqtt-test",
			TLS:      false,
		},
		QoS: 0,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Connection State Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}

	if err := client.Close(); err != nil {
		t.Errorf("Close() on uninitialised client error = %v", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestOnDisconnectCallback(t *testing.T) {
	client := &Client{}
	client.connected.Store(true)

	var got error
	client.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("link lost")
	client.handleDisconnect(lost)

	if !errors.Is(got, lost) {
		t.Errorf("callback error = %v, want %v", got, lost)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
	if client.Stats().ConnectionLosses != 1 {
		t.Errorf("ConnectionLosses = %d, want 1", client.Stats().ConnectionLosses)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr error
	}{
		{"home/lamp", nil},
		{"/leading/slash", nil},
		{"trailing/", nil},
		{"", ErrInvalidTopic},
		{"a\x00b", ErrInvalidTopic},
		{strings.Repeat("a", maxTopicLength+1), ErrInvalidTopic},
		{"home/+/lamp", ErrWildcardTopic},
		{"home/#", ErrWildcardTopic},
	}

	for _, tt := range tests {
		err := ValidateTopicName(tt.topic)
		if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
			t.Errorf("ValidateTopicName(%.20q) = %v, want %v", tt.topic, err, tt.wantErr)
		}
	}
}

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"home/lamp", false},
		{"home/+/lamp", false},
		{"+", false},
		{"#", false},
		{"home/#", false},
		{"+/+/#", false},
		{"", true},
		{"home/#/lamp", true},
		{"home/la+mp", true},
		{"home/lamp#", true},
		{"a\x00", true},
	}

	for _, tt := range tests {
		err := ValidateTopicFilter(tt.filter)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTopicFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateTopicFilter(%q) error = %v, want ErrInvalidTopic", tt.filter, err)
		}
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"wildcard topic", "a/+", []byte("x"), 0, ErrWildcardTopic},
		{"invalid QoS", "a", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "a", make([]byte, maxPayloadSize+1), 0, ErrPayloadTooLarge},
		{"not connected", "a", []byte("x"), 0, ErrNotConnected},
		{"nil payload not connected", "a", nil, 0, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		filter  string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty filter", "", 0, handler, ErrInvalidTopic},
		{"misplaced hash", "a/#/b", 0, handler, ErrInvalidTopic},
		{"invalid QoS", "a", 3, handler, ErrInvalidQoS},
		{"nil handler", "a", 0, nil, ErrSubscribeFailed},
		{"not connected", "a/+", 0, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.filter, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := client.Subscriptions(); len(got) != 0 {
		t.Errorf("Subscriptions() = %v, want none after failed subscribes", got)
	}
	if client.HasSubscription("a") {
		t.Error("HasSubscription() = true after failed subscribe")
	}
}

func TestSubscriptionsSorted(t *testing.T) {
	handler := func(string, []byte) error { return nil }
	client := &Client{subscriptions: map[string]subscription{
		"z/1": {filter: "z/1", handler: handler},
		"a/+": {filter: "a/+", handler: handler},
		"m/#": {filter: "m/#", handler: handler},
	}}

	got := client.Subscriptions()
	want := []string{"a/+", "m/#", "z/1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Subscriptions() = %v, want %v", got, want)
	}
	if !client.HasSubscription("m/#") {
		t.Error("HasSubscription(m/#) = false")
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("a"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "serial2mqtt-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession || !opts.Order {
		t.Error("expected auto-reconnect, clean session and ordered delivery")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("unexpected TLS config for plain connection")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	topic := Topics{}.Status("bench-01")
	payload := statusPayload(statusOffline, reasonUnexpected, "bench-01", "serial2mqtt-test", time.Now())

	configureLWT(opts, topic, payload)

	if !opts.WillEnabled || opts.WillTopic != topic {
		t.Errorf("will = %v %q, want enabled on %q", opts.WillEnabled, opts.WillTopic, topic)
	}
	if !opts.WillRetained || opts.WillQos != statusQoS {
		t.Errorf("will retained=%v qos=%d", opts.WillRetained, opts.WillQos)
	}
	if string(opts.WillPayload) != string(payload) {
		t.Errorf("will payload = %s", opts.WillPayload)
	}
}

func TestStatusPayload(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))

	tests := []struct {
		name   string
		status string
		reason string
	}{
		{"online", statusOnline, ""},
		{"graceful", statusOffline, reasonShutdown},
		{"lwt", statusOffline, reasonUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg statusMessage
			if err := json.Unmarshal(statusPayload(tt.status, tt.reason, "bench-01", "id-1", now), &msg); err != nil {
				t.Fatalf("payload not JSON: %v", err)
			}
			if msg.Status != tt.status || msg.Reason != tt.reason {
				t.Errorf("status/reason = %q/%q", msg.Status, msg.Reason)
			}
			if msg.Bridge != "bench-01" || msg.ClientID != "id-1" {
				t.Errorf("ids = %q/%q", msg.Bridge, msg.ClientID)
			}
			if msg.Timestamp != "2026-03-04T04:06:07Z" {
				t.Errorf("Timestamp = %q, want UTC", msg.Timestamp)
			}
		})
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler_PanicRecovered(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "a"})

	if len(logger.errors) != 1 {
		t.Errorf("errors logged = %v, want one", logger.errors)
	}
	st := client.Stats()
	if st.Received != 1 || st.HandlerPanics != 1 {
		t.Errorf("Stats() = %+v, want one received and one panic", st)
	}
}

func TestWrapHandler_ErrorLogged(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	var gotTopic, gotPayload string
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return errors.New("handler error")
	})
	wrapped(nil, fakeMessage{topic: "home/lamp", payload: []byte("on")})

	if gotTopic != "home/lamp" || gotPayload != "on" {
		t.Errorf("handler got %q=%q", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns logged = %v, want one", logger.warns)
	}
	if client.Stats().HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", client.Stats().HandlerErrors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "a"})
}

func TestSetLogger(t *testing.T) {
	client := &Client{}

	client.SetLogger(&mockLogger{})
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}

	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Status", topics.Status("bench-01"), "serial2mqtt/bench-01/status"},
		{"Health", topics.Health("bench-01"), "serial2mqtt/bench-01/health"},
		{"Diagnostics", topics.Diagnostics("bench-01"), "serial2mqtt/bench-01/diagnostics"},
		{"AllStatus", topics.AllStatus(), "serial2mqtt/+/status"},
		{"AllHealth", topics.AllHealth(), "serial2mqtt/+/health"},
		{"AllTopics", topics.AllTopics(), "serial2mqtt/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
			if !strings.HasPrefix(tt.got, TopicPrefix+"/") {
				t.Errorf("%s not under %s", tt.got, TopicPrefix)
			}
			if err := ValidateTopicFilter(tt.got); err != nil {
				t.Errorf("%s is not a valid filter: %v", tt.got, err)
			}
		})
	}
}
