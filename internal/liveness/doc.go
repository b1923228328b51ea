// Package liveness tracks whether the bridge process at the far end of the
// device stream is alive and connected to its broker.
//
// The device periodically publishes an incrementing sequence number to a
// loopback topic it is also subscribed to. Seeing that publish come back
// proves the whole chain (stream, bridge, broker) works. If no echo arrives
// within three heartbeat intervals the link is declared offline and the
// next heartbeat re-issues the loopback subscription.
//
// Monitor holds no I/O. Callers turn the returned Heartbeat into frames.
package liveness
