package influxdb

import "errors"

// Errors returned by Connect and HealthCheck, and passed to the SetOnError
// callback. Compare with errors.Is.
var (
	// ErrNotConnected is returned by HealthCheck on a nil or closed client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed is returned by Connect when the first ping fails
	// or the server reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps batch write failures delivered to SetOnError.
	// Writes never return it directly.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
