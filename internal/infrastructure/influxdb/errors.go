package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// The bridge runs without metrics in that case.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrInvalidConfig is returned by Connect when url, org or bucket is empty.
	ErrInvalidConfig = errors.New("influxdb: invalid configuration")

	// ErrConnectionFailed wraps a failed or unhealthy ping at connect time.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
