package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrMissingConfig is returned by NewBridge without a configuration.
	ErrMissingConfig = errors.New("bridge: config is required")

	// ErrMissingMQTT is returned by NewBridge without an MQTT client.
	ErrMissingMQTT = errors.New("bridge: MQTT client is required")

	// ErrMissingDevice is returned by NewBridge without a device stream.
	ErrMissingDevice = errors.New("bridge: device stream is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrUnsafePayload is returned when a broker message cannot be framed
	// for the device because it contains a quote or a line break.
	ErrUnsafePayload = errors.New("bridge: payload cannot be framed")
)
