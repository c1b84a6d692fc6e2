package daemonconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultIsValid(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1*time.Second, cfg.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.SensorIdleTimeout)
}

func TestValidateRejectsMissingStateDir(t *testing.T) {
	cfg := NewDefault()
	cfg.StateDir = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingStateDir)
}

func TestValidateRejectsNonPositiveTickInterval(t *testing.T) {
	cfg := NewDefault()
	cfg.TickInterval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTickInterval)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("TCCD_STATE_DIR", "/tmp/tccd-test")
	t.Setenv("TCCD_TICK_INTERVAL", "2s")
	t.Setenv("TCCD_DEBUG", "true")

	cfg := NewDefault()
	cfg.Load()

	assert.Equal(t, "/tmp/tccd-test", cfg.StateDir)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.True(t, cfg.Debug)
}
