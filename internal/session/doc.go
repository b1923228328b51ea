// Package session is the device side of serial2mqtt.
//
// A Session owns one byte stream to the bridge process and everything that
// rides on it: outgoing subscribe and publish frames, the loopback
// heartbeat, the single-slot inbox and the optional status indicator.
//
// # Usage
//
//	s := session.New(session.Config{
//	    Stream:        stream,
//	    LoopbackTopic: "/src/hb",
//	})
//	s.Subscribe("room/setpoint")
//	for {
//	    s.Housekeeping()
//	    if s.MessageWaiting() {
//	        handle(s.Topic(), s.Message())
//	        s.MarkMessageRead()
//	    }
//	    if s.Online() {
//	        s.Publish("room/temp", reading())
//	    }
//	}
//
// # Concurrency
//
// A Session is driven from a single polling loop and is not safe for
// concurrent use. Housekeeping never blocks: it polls Stream.Available and
// reads only what is already buffered.
//
// # Diagnostics
//
// With Debug enabled the session writes human-readable lines, each starting
// with the diagnostic prefix, to the same stream. They never change protocol
// state. Structured logs go to the optional Logger.
package session
