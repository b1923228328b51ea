package session

import (
	"fmt"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/inbox"
	"github.com/ncmreynolds/serial2mqtt/internal/indicator"
	"github.com/ncmreynolds/serial2mqtt/internal/liveness"
	"github.com/ncmreynolds/serial2mqtt/internal/protocol"
)

// DefaultDiagnosticPrefix starts every debug line written to the stream.
const DefaultDiagnosticPrefix = "Arduino:"

// lineEnding terminates diagnostic and Println output.
const lineEnding = "\r\n"

// Config holds the settings for a new Session.
type Config struct {
	// Stream is the byte channel to the bridge. It may be set later with
	// Begin; until then reads and writes are skipped.
	Stream Stream

	// Clock defaults to SystemClock.
	Clock Clock

	// Encoding selects the outgoing frame form. Default: JSON-array.
	Encoding protocol.Encoding

	// LoopbackTopic enables the heartbeat. Empty leaves liveness unknown and
	// Online always true.
	LoopbackTopic string

	// LoopbackInterval is the heartbeat period. Default: 4.5 seconds.
	LoopbackInterval time.Duration

	// StrictSequence rejects loopback echoes carrying an unexpected sequence
	// number instead of accepting any echo on the loopback topic.
	StrictSequence bool

	// StrictFrames requires inbound blobs to be enclosed in braces or
	// brackets before they are decoded.
	StrictFrames bool

	// Debug enables diagnostic lines on the stream.
	Debug bool

	// DiagnosticPrefix defaults to DefaultDiagnosticPrefix.
	DiagnosticPrefix string

	// Logger receives structured logs. Optional.
	Logger Logger
}

// Stats holds counters and state for inspection.
type Stats struct {
	Ticks       uint64
	Reads       uint64
	Subscribes  uint64
	Publishes   uint64
	Heartbeats  uint64
	KeepAlives  uint64
	Echoes      uint64
	Rejected    uint64 // loopback echoes refused in strict mode
	Delivered   uint64 // messages placed in the inbox
	Dropped     uint64 // unread inbox messages overwritten
	Ignored     uint64 // blobs that decoded to nothing actionable
	WriteErrors uint64

	Online   bool
	State    liveness.State
	Sequence uint8
}

// Session is the device-side protocol engine.
type Session struct {
	stream  Stream
	clock   Clock
	enc     protocol.Encoding
	decoder protocol.Decoder
	debug   bool
	prefix  string

	monitor   *liveness.Monitor
	inbox     inbox.Inbox
	indicator *indicator.Driver

	logger Logger
	stats  Stats
}

// New creates a Session. Timers start now: the first heartbeat is sent one
// interval after construction.
func New(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	prefix := cfg.DiagnosticPrefix
	if prefix == "" {
		prefix = DefaultDiagnosticPrefix
	}

	s := &Session{
		stream:  cfg.Stream,
		clock:   clock,
		enc:     cfg.Encoding,
		decoder: protocol.Decoder{Strict: cfg.StrictFrames},
		debug:   cfg.Debug,
		prefix:  prefix,
		monitor: liveness.New(cfg.LoopbackInterval, clock.Now()),
		logger:  cfg.Logger,
	}
	s.monitor.SetTopic(cfg.LoopbackTopic)
	s.monitor.SetStrict(cfg.StrictSequence)
	return s
}

// Begin sets the stream used to talk to the bridge.
func (s *Session) Begin(stream Stream) {
	s.stream = stream
}

// UseJSONObjects selects the JSON-object encoding.
func (s *Session) UseJSONObjects() { s.enc = protocol.EncodingObject }

// UseJSONArrays selects the JSON-array encoding, the default.
func (s *Session) UseJSONArrays() { s.enc = protocol.EncodingArray }

// SetEncoding selects the outgoing encoding.
func (s *Session) SetEncoding(enc protocol.Encoding) { s.enc = enc }

// Encoding returns the outgoing encoding.
func (s *Session) Encoding() protocol.Encoding { return s.enc }

// LoopbackTopic sets the topic used for heartbeats. It should not be a
// topic the application uses for data.
func (s *Session) LoopbackTopic(topic string) {
	s.monitor.SetTopic(topic)
}

// Debug enables or disables diagnostic lines on the stream.
func (s *Session) Debug(enabled bool) { s.debug = enabled }

// SetLogger sets the structured logger.
func (s *Session) SetLogger(logger Logger) { s.logger = logger }

// StatusIndicator enables a status output. It is driven low immediately
// and then blinks at a rate reflecting the link state.
func (s *Session) StatusIndicator(out indicator.Output) {
	s.indicator = indicator.NewDriver(out, s.clock.Now())
}

// Subscribe asks the bridge to subscribe to topic.
func (s *Session) Subscribe(topic string) {
	s.diag("Subscribing to " + topic)
	s.stats.Subscribes++
	s.write(protocol.EncodeSubscribe(s.enc, topic))
}

// Publish asks the bridge to publish message to topic. The message may be
// any value; it is rendered with fmt.Sprint.
func (s *Session) Publish(topic string, message any) {
	text := fmt.Sprint(message)
	s.diag("Publishing to " + topic + " data " + text)
	s.stats.Publishes++
	s.write(protocol.EncodePublish(s.enc, topic, text))
}

// Print writes v to the stream as text.
func (s *Session) Print(v any) {
	s.write(fmt.Sprint(v))
}

// Println writes v to the stream followed by a line ending.
func (s *Session) Println(v any) {
	s.write(fmt.Sprint(v) + lineEnding)
}

// Online reports whether the bridge is reachable. Without a loopback topic
// it is always true.
func (s *Session) Online() bool { return s.monitor.Online() }

// MessageWaiting reports whether an unread message is in the inbox.
func (s *Session) MessageWaiting() bool { return s.inbox.Waiting() }

// Topic returns the topic of the most recent message.
func (s *Session) Topic() string { return s.inbox.Topic() }

// Message returns the most recent message.
func (s *Session) Message() string { return s.inbox.Message() }

// MessageIsNumber reports whether the most recent message is all digits.
func (s *Session) MessageIsNumber() bool { return s.inbox.IsNumeric() }

// MessageInt returns the most recent message as an integer, 0 if it is not
// numeric.
func (s *Session) MessageInt() uint32 { return s.inbox.Int() }

// MarkMessageRead empties the inbox.
func (s *Session) MarkMessageRead() { s.inbox.MarkRead() }

// Stats returns a snapshot of counters and link state.
func (s *Session) Stats() Stats {
	st := s.stats
	st.Dropped = s.inbox.Dropped()
	st.Online = s.monitor.Online()
	st.State = s.monitor.State()
	st.Sequence = s.monitor.Sequence()
	return st
}

// write sends text to the stream, best effort.
func (s *Session) write(text string) {
	if s.stream == nil {
		return
	}
	if _, err := s.stream.WriteString(text); err != nil {
		s.stats.WriteErrors++
		s.logDebug("stream write failed", "error", err, "bytes", len(text))
	}
}

// diag writes a diagnostic line when debugging is enabled.
func (s *Session) diag(line string) {
	if !s.debug {
		return
	}
	s.write(s.prefix + line + lineEnding)
}

func (s *Session) logDebug(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, keysAndValues...)
	}
}

func (s *Session) logInfo(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keysAndValues...)
	}
}

func (s *Session) logWarn(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keysAndValues...)
	}
}
