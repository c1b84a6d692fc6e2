package daemonconfig

import "errors"

var (
	// ErrMissingStateDir is returned when the settings/autosave directory is empty.
	ErrMissingStateDir = errors.New("state directory is required")

	// ErrInvalidTickInterval is returned when the coordinator tick interval is invalid.
	ErrInvalidTickInterval = errors.New("tick interval must be greater than 0")

	// ErrInvalidSensorIdleTimeout is returned when the sensor auto-disable timeout is invalid.
	ErrInvalidSensorIdleTimeout = errors.New("sensor idle timeout must be greater than 0")
)
