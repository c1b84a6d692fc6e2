// Package daemonconfig holds the daemon's environment-overridable
// configuration: where it persists settings/autosave, how often the
// coordinator ticks, and the water-cooler debounce windows.
package daemonconfig

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the daemon process.
type Config struct {
	// StateDir is the directory holding settings.json and autosave.json.
	StateDir string

	// TickInterval is the coordinator's orchestration cadence (spec: 1 Hz).
	TickInterval time.Duration

	// SensorIdleTimeout is how long the hardware monitor worker keeps
	// collecting after the last GPU/CPU getter call before auto-disabling.
	SensorIdleTimeout time.Duration

	// WCConnectDebounce/WCDisconnectDebounce bound how long a raw
	// water-cooler connection flag must be stable before the coordinator
	// accepts the transition.
	WCConnectDebounce    time.Duration
	WCDisconnectDebounce time.Duration

	// BusObjectPath is the path the RPC adaptor registers under.
	BusObjectPath string

	// LogFormat is "text" or "json".
	LogFormat string

	// Debug enables debug-level logging.
	Debug bool
}

// NewDefault returns the daemon's default configuration.
func NewDefault() *Config {
	return &Config{
		StateDir:             getEnvOrDefault("TCCD_STATE_DIR", "/var/lib/tccd"),
		TickInterval:         1 * time.Second,
		SensorIdleTimeout:    10 * time.Second,
		WCConnectDebounce:    3 * time.Second,
		WCDisconnectDebounce: 10 * time.Second,
		BusObjectPath:        "/com/tuxedocomputers/tccd/UccDBusService",
		LogFormat:            getEnvOrDefault("TCCD_LOG_FORMAT", "text"),
		Debug:                getEnvBoolOrDefault("TCCD_DEBUG", false),
	}
}

// Load overrides the configuration from environment variables.
func (c *Config) Load() {
	if dir := os.Getenv("TCCD_STATE_DIR"); dir != "" {
		c.StateDir = dir
	}
	if v := os.Getenv("TCCD_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TickInterval = d
		}
	}
	if v := os.Getenv("TCCD_SENSOR_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SensorIdleTimeout = d
		}
	}
	if v := os.Getenv("TCCD_WC_CONNECT_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WCConnectDebounce = d
		}
	}
	if v := os.Getenv("TCCD_WC_DISCONNECT_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WCDisconnectDebounce = d
		}
	}
	c.LogFormat = getEnvOrDefault("TCCD_LOG_FORMAT", c.LogFormat)
	c.Debug = getEnvBoolOrDefault("TCCD_DEBUG", c.Debug)
}

// Validate rejects a configuration that cannot run.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return ErrMissingStateDir
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.SensorIdleTimeout <= 0 {
		return ErrInvalidSensorIdleTimeout
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
