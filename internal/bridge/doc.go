// Package bridge implements the host side of serial2mqtt: it relays frames
// between a serial device and an MQTT broker.
//
// Frames from the device:
//   - subscribe requests become broker subscriptions (QoS 0, once per topic)
//   - publish requests are forwarded to the broker (QoS 0, not retained)
//   - keep-alive frames are counted and dropped
//   - lines carrying the diagnostic prefix, or no frame at all, are device
//     diagnostics: logged at debug and optionally republished
//
// Broker messages on subscribed topics are written back down to the device as
// publish frames in the configured encoding. Each broker (re)connect is
// announced to the device with a connect frame.
//
// Optional collaborators receive every relayed frame: a Journal (SQLite) and
// Metrics (InfluxDB). A HealthReporter publishes periodic JSON status.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Writes to the device are serialised.
package bridge
