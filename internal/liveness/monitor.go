package liveness

import (
	"strconv"
	"time"
)

const (
	// DefaultInterval is the heartbeat interval. It keeps the bridge from
	// timing out an idle serial link.
	DefaultInterval = 4500 * time.Millisecond

	// expiryFactor is how many missed intervals declare the link offline.
	expiryFactor = 3
)

// State is the coarse link state used to pick an indicator cadence.
type State int

const (
	// StateUnknown means the link has never been confirmed, or no loopback
	// topic is configured.
	StateUnknown State = iota
	StateOffline
	StateOnline
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Heartbeat describes what the caller should send on this tick.
type Heartbeat struct {
	// Due is true when the heartbeat interval has elapsed.
	Due bool

	// Resubscribe asks for a subscribe to Topic before the publish, sent
	// while the link is offline.
	Resubscribe bool

	// KeepAlive asks for an idle frame instead of a loopback publish,
	// because no loopback topic is configured.
	KeepAlive bool

	Topic    string
	Sequence uint8
}

// EchoResult reports how a loopback echo was handled.
type EchoResult struct {
	// Accepted is false only in strict mode when the sequence mismatched.
	Accepted bool

	// WentOnline is true when this echo moved the link online.
	WentOnline bool

	// Received is the parsed sequence value; HasValue is false when the
	// echoed message was not numeric.
	Received uint32
	HasValue bool

	// Expected is the sequence number that was awaited.
	Expected uint8
}

// Monitor is the loopback heartbeat state machine.
//
// Monitor is not safe for concurrent use; it is driven from a single
// polling loop.
type Monitor struct {
	topic      string
	configured bool
	strict     bool

	sequence uint8
	online   bool
	everUp   bool

	interval     time.Duration
	lastSent     time.Time
	lastReceived time.Time
}

// New creates a Monitor whose timers start at now.
// A non-positive interval selects DefaultInterval.
func New(interval time.Duration, now time.Time) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		interval:     interval,
		lastSent:     now,
		lastReceived: now,
	}
}

// SetTopic configures the loopback topic. An empty topic removes it.
func (m *Monitor) SetTopic(topic string) {
	m.topic = topic
	m.configured = topic != ""
}

// SetStrict enables rejection of echoes whose sequence number does not match
// the expected value. The default accepts any echo on the loopback topic.
func (m *Monitor) SetStrict(strict bool) {
	m.strict = strict
}

// Topic returns the loopback topic, or "" when unconfigured.
func (m *Monitor) Topic() string { return m.topic }

// Configured reports whether a loopback topic is set.
func (m *Monitor) Configured() bool { return m.configured }

// Sequence returns the next sequence number to publish.
func (m *Monitor) Sequence() uint8 { return m.sequence }

// Interval returns the heartbeat interval.
func (m *Monitor) Interval() time.Duration { return m.interval }

// LastReceived returns when liveness was last proven.
func (m *Monitor) LastReceived() time.Time { return m.lastReceived }

// Online reports whether the bridge is reachable. Without a loopback topic
// there is no way to know, so the link is assumed reachable.
func (m *Monitor) Online() bool {
	if !m.configured {
		return true
	}
	return m.online
}

// State returns the link state for indicator purposes.
func (m *Monitor) State() State {
	switch {
	case m.online:
		return StateOnline
	case m.everUp:
		return StateOffline
	default:
		return StateUnknown
	}
}

// Heartbeat advances the send timer. When the interval has elapsed it
// returns a due Heartbeat and restarts the timer from now.
func (m *Monitor) Heartbeat(now time.Time) Heartbeat {
	if now.Sub(m.lastSent) < m.interval {
		return Heartbeat{}
	}
	m.lastSent = now

	if !m.configured {
		return Heartbeat{Due: true, KeepAlive: true}
	}
	return Heartbeat{
		Due:         true,
		Resubscribe: !m.online,
		Topic:       m.topic,
		Sequence:    m.sequence,
	}
}

// Expire checks the receive timer. It returns true exactly when the link
// transitions from online to offline.
func (m *Monitor) Expire(now time.Time) bool {
	if !m.online {
		return false
	}
	if now.Sub(m.lastReceived) <= m.interval*expiryFactor {
		return false
	}
	m.online = false
	return true
}

// IsLoopback reports whether topic is the configured loopback topic.
func (m *Monitor) IsLoopback(topic string) bool {
	return m.configured && topic == m.topic
}

// Echo records a publish received on the loopback topic.
func (m *Monitor) Echo(now time.Time, message string) EchoResult {
	res := EchoResult{Expected: m.sequence}
	if v, err := strconv.ParseUint(message, 10, 32); err == nil {
		res.Received = uint32(v)
		res.HasValue = true
	}

	if m.strict && (!res.HasValue || res.Received != uint32(m.sequence)) {
		if res.HasValue {
			m.sequence = uint8(res.Received)
		}
		return res
	}

	res.Accepted = true
	m.lastReceived = now
	m.sequence++
	if !m.online {
		m.online = true
		m.everUp = true
		res.WentOnline = true
	}
	return res
}

// Traffic records that bytes arrived. Without a loopback topic any traffic
// counts as proof of life.
func (m *Monitor) Traffic(now time.Time) {
	if !m.configured {
		m.lastReceived = now
	}
}
