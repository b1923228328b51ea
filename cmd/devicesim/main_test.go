package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/logging"
)

// memStream is an in-memory session.Stream.
type memStream struct {
	mu      sync.Mutex
	inbound []string
	written strings.Builder
}

func (m *memStream) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inbound) > 0
}

func (m *memStream) ReadAvailable() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbound) == 0 {
		return "", nil
	}
	s := m.inbound[0]
	m.inbound = m.inbound[1:]
	return s, nil
}

func (m *memStream) WriteString(s string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.WriteString(s)
}

func (m *memStream) push(s string) {
	m.mu.Lock()
	m.inbound = append(m.inbound, s)
	m.mu.Unlock()
}

// drain returns and clears everything written so far.
func (m *memStream) drain() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.written.String()
	m.written.Reset()
	return s
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func simConfig() *config.Config {
	cfg := config.Default()
	cfg.Device.Subscriptions = []string{"home/led"}
	cfg.Device.PublishTopic = "home/counter"
	cfg.Device.PublishInterval = 1000
	cfg.Device.LoopbackTopic = ""
	cfg.Device.Debug = false
	return cfg
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}

func TestSimulatorSubscribesOnBegin(t *testing.T) {
	stream := &memStream{}
	clock := &manualClock{now: time.Unix(1000, 0)}
	sim := newSimulator(simConfig(), stream, clock, quietLogger())

	sim.begin()

	if got := stream.drain(); got != "[0,\"home/led\"]\r\n" {
		t.Errorf("begin() wrote %q", got)
	}
}

func TestSimulatorPublishesCounter(t *testing.T) {
	stream := &memStream{}
	clock := &manualClock{now: time.Unix(1000, 0)}
	sim := newSimulator(simConfig(), stream, clock, quietLogger())
	sim.begin()
	stream.drain()

	sim.step()
	if got := stream.drain(); got != "" {
		t.Fatalf("published before the interval: %q", got)
	}

	clock.Advance(time.Second)
	sim.step()
	if got := stream.drain(); got != "[1,\"home/counter\",\"0\",0,0]\r\n" {
		t.Errorf("first publish = %q", got)
	}

	clock.Advance(time.Second)
	sim.step()
	if got := stream.drain(); got != "[1,\"home/counter\",\"1\",0,0]\r\n" {
		t.Errorf("second publish = %q", got)
	}
	if sim.counter != 2 {
		t.Errorf("counter = %d, want 2", sim.counter)
	}
}

func TestSimulatorDrainsInbox(t *testing.T) {
	stream := &memStream{}
	clock := &manualClock{now: time.Unix(1000, 0)}
	sim := newSimulator(simConfig(), stream, clock, quietLogger())
	sim.begin()

	stream.push(`[1,"home/led","1",0,0]`)
	sim.step()

	if sim.received != 1 {
		t.Errorf("received = %d, want 1", sim.received)
	}
	if sim.session.MessageWaiting() {
		t.Error("message should be marked read")
	}

	stream.push(`{ "cmd":"MQTT-PUB","topic":"home/led","message":"off" }`)
	sim.step()
	if sim.received != 2 {
		t.Errorf("received = %d, want 2", sim.received)
	}
}

func TestSimulatorWaitsForLoopback(t *testing.T) {
	cfg := simConfig()
	cfg.Device.LoopbackTopic = "sim/loopback"
	stream := &memStream{}
	clock := &manualClock{now: time.Unix(1000, 0)}
	sim := newSimulator(cfg, stream, clock, quietLogger())
	sim.begin()

	clock.Advance(2 * time.Second)
	sim.step()

	if strings.Contains(stream.drain(), "home/counter") {
		t.Error("should not publish while the link is not online")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SERIAL2MQTT_CONFIG", "/nonexistent/devicesim.toml")

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail with a missing config file")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SERIAL2MQTT_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}
