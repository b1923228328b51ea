package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/protocol"
)

// Housekeeping runs one pass of the session. Call it once per poll cycle.
//
// Each pass:
//  1. Sends a heartbeat if one is due (subscribe retry while offline,
//     loopback publish, or keep-alive without a loopback topic)
//  2. Checks heartbeat expiry
//  3. Advances the status indicator
//  4. If bytes are buffered: reads them all, decodes the first frame and
//     routes it to the liveness monitor or the inbox
func (s *Session) Housekeeping() {
	now := s.clock.Now()
	s.stats.Ticks++

	s.heartbeat(now)

	if s.monitor.Expire(now) {
		s.diag("Gone offline")
		s.logWarn("loopback expired, bridge offline",
			"topic", s.monitor.Topic(),
			"last_received", s.monitor.LastReceived(),
		)
	}

	if s.indicator != nil {
		s.indicator.Update(now, s.monitor.State())
	}

	if s.stream == nil || !s.stream.Available() {
		return
	}

	blob, err := s.stream.ReadAvailable()
	if err != nil {
		s.logDebug("stream read failed", "error", err)
	}
	if blob == "" {
		return
	}
	s.stats.Reads++
	s.monitor.Traffic(now)

	cmd, err := s.decoder.Decode(blob)
	if err != nil {
		s.stats.Ignored++
		s.diag("invalid string " + blob)
		s.logDebug("undecodable input", "error", err, "bytes", len(blob))
		return
	}
	s.route(now, cmd, blob)
}

// heartbeat sends whatever the liveness monitor says is due.
func (s *Session) heartbeat(now time.Time) {
	hb := s.monitor.Heartbeat(now)
	if !hb.Due {
		return
	}

	if hb.KeepAlive {
		s.stats.KeepAlives++
		s.write(protocol.EncodeKeepAlive(s.enc))
		return
	}

	if hb.Resubscribe {
		s.Subscribe(hb.Topic)
	}
	s.stats.Heartbeats++
	s.Publish(hb.Topic, hb.Sequence)
}

// route acts on one decoded command.
func (s *Session) route(now time.Time, cmd protocol.Command, blob string) {
	switch cmd.Kind {
	case protocol.KindPublish:
		s.received(now, cmd)
	case protocol.KindConnect:
		s.stats.Ignored++
		s.diag("MQTT-CONN connected!")
		s.logInfo("bridge connected to broker")
	case protocol.KindSubscribe:
		s.stats.Ignored++
		s.diag("Ignoring subscribe for " + cmd.Topic)
	default:
		s.stats.Ignored++
		s.diag(fmt.Sprintf("Unknown command %q in %s", cmd.Name, blob))
		s.logDebug("unknown command", "cmd", cmd.Name)
	}
}

// received handles an inbound publish.
func (s *Session) received(now time.Time, cmd protocol.Command) {
	if v, ok := protocol.ParseUint(cmd.Message); ok {
		s.diag("MQTT-PUB received on topic " + cmd.Topic + " value " + strconv.FormatUint(uint64(v), 10))
	} else {
		s.diag("MQTT-PUB received on topic " + cmd.Topic + " message " + cmd.Message)
	}

	if !s.monitor.IsLoopback(cmd.Topic) {
		s.stats.Delivered++
		if s.inbox.Deposit(cmd.Topic, cmd.Message) {
			s.logDebug("unread message overwritten", "topic", cmd.Topic)
		}
		return
	}

	res := s.monitor.Echo(now, cmd.Message)
	if !res.Accepted {
		s.stats.Rejected++
		s.diag(fmt.Sprintf("Wrong loopback message %s received, expecting %d", cmd.Message, res.Expected))
		return
	}

	s.stats.Echoes++
	s.diag(fmt.Sprintf("Expected loopback message %s received", cmd.Message))
	if res.WentOnline {
		s.diag("Gone online")
		s.logInfo("loopback confirmed, bridge online", "topic", cmd.Topic)
	}
}
