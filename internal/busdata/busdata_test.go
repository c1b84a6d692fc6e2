package busdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetBlobAndBlob(t *testing.T) {
	s := New()
	s.SetBlob(BlobGPUInfo, `{"tempC":55}`)
	assert.Equal(t, `{"tempC":55}`, s.Blob(BlobGPUInfo))
	assert.Equal(t, "", s.Blob(BlobCPUInfo))
}

func TestResetDataCollectionTimeoutEnablesImmediately(t *testing.T) {
	s := New()
	assert.False(t, s.SensorDataCollectionEnabled())
	s.ResetDataCollectionTimeout()
	assert.True(t, s.SensorDataCollectionEnabled())
}

func TestSensorCollectionDisablesAfterTimeout(t *testing.T) {
	original := SensorCollectionTimeout
	SensorCollectionTimeout = 5 * time.Millisecond
	defer func() { SensorCollectionTimeout = original }()

	s := New()
	s.ResetDataCollectionTimeout()
	assert.True(t, s.SensorDataCollectionEnabled())

	assert.Eventually(t, func() bool {
		return !s.SensorDataCollectionEnabled()
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestResetDataCollectionTimeoutRestartsTimer(t *testing.T) {
	original := SensorCollectionTimeout
	SensorCollectionTimeout = 30 * time.Millisecond
	defer func() { SensorCollectionTimeout = original }()

	s := New()
	s.ResetDataCollectionTimeout()
	time.Sleep(15 * time.Millisecond)
	s.ResetDataCollectionTimeout()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, s.SensorDataCollectionEnabled())
}

func TestFlagRoundTrips(t *testing.T) {
	s := New()

	s.SetModeReapplyPending(true)
	assert.True(t, s.ModeReapplyPending())

	s.SetWaterCoolerConnected(true)
	assert.True(t, s.WaterCoolerConnected())

	s.SetNVIDIAPowerCTRLAvailable(true)
	assert.True(t, s.NVIDIAPowerCTRLAvailable())

	s.SetCTGPAdjustmentSupported(true)
	assert.True(t, s.CTGPAdjustmentSupported())

	s.SetWaterCoolerSupported(true)
	assert.True(t, s.WaterCoolerSupported())

	s.SetWaterCoolerScanningEnabled(true)
	assert.True(t, s.WaterCoolerScanningEnabled())
}

func TestPowerLimitWatts(t *testing.T) {
	s := New()
	s.SetPowerLimitWatts(45, 90)

	current, max := s.PowerLimitWatts()
	assert.Equal(t, int32(45), current)
	assert.Equal(t, int32(90), max)
}
