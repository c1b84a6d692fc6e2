package hardwaremonitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/procexec"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type fakeWebcam struct {
	available bool
	enabled   bool
}

func (f fakeWebcam) Available() bool { return f.available }
func (f fakeWebcam) Enabled() bool   { return f.enabled }

func TestTickSkippedWhenSensorCollectionDisabled(t *testing.T) {
	store := busdata.New()
	runner := &procexec.FakeRunner{}
	w := New(runner, store, nil, nil)

	require.NoError(t, w.Tick(context.Background()))
	assert.Empty(t, store.Blob(busdata.BlobGPUInfo))
}

func TestTickPollsGPUViaNvidiaSmi(t *testing.T) {
	store := busdata.New()
	store.ResetDataCollectionTimeout()
	runner := &procexec.FakeRunner{
		Outputs: map[string]string{
			"nvidia-smi --query-gpu=temperature.gpu,clocks.gr,clocks.max.gr,power.draw,power.max_limit,power.limit --format=csv,noheader,nounits": "65,1200,1800,45.5,115.0,115.0",
		},
	}
	w := New(runner, store, nil, nil)

	require.NoError(t, w.Tick(context.Background()))

	var gpu GPUInfo
	require.NoError(t, json.Unmarshal([]byte(store.Blob(busdata.BlobGPUInfo)), &gpu))
	assert.Equal(t, 65.0, gpu.TempC)
	assert.Equal(t, int32(1200), gpu.CoreClockMHz)
	assert.Equal(t, 45.5, gpu.PowerDrawWatts)
	assert.True(t, gpu.D0)
}

func TestTickFallsBackToIGPUWhenNvidiaSmiUnavailable(t *testing.T) {
	dir := t.TempDir()
	hwmonPath := filepath.Join(dir, "temp1_input")
	writeFile(t, hwmonPath, "45000\n")
	orig := igpuHwmonTempPath
	igpuHwmonTempPath = hwmonPath
	defer func() { igpuHwmonTempPath = orig }()

	store := busdata.New()
	store.ResetDataCollectionTimeout()
	w := New(&procexec.FakeRunner{}, store, nil, nil)

	require.NoError(t, w.Tick(context.Background()))

	var gpu GPUInfo
	require.NoError(t, json.Unmarshal([]byte(store.Blob(busdata.BlobGPUInfo)), &gpu))
	assert.Equal(t, 45.0, gpu.TempC)
}

func TestTickSkipsNvidiaSmiWhenD0MetricsDisabled(t *testing.T) {
	store := busdata.New()
	store.ResetDataCollectionTimeout()
	runner := &procexec.FakeRunner{
		Outputs: map[string]string{
			"nvidia-smi --query-gpu=temperature.gpu,clocks.gr,clocks.max.gr,power.draw,power.max_limit,power.limit --format=csv,noheader,nounits": "65,1200,1800,45.5,115.0,115.0",
		},
	}
	w := New(runner, store, nil, nil)
	w.SetD0MetricsEnabled(false)

	require.NoError(t, w.Tick(context.Background()))

	var gpu GPUInfo
	require.NoError(t, json.Unmarshal([]byte(store.Blob(busdata.BlobGPUInfo)), &gpu))
	assert.False(t, gpu.D0)
	assert.Equal(t, 0.0, gpu.TempC)
}

func TestPollCPUComputesWattsFromRAPLDelta(t *testing.T) {
	dir := t.TempDir()
	energyPath := filepath.Join(dir, "energy_uj")
	writeFile(t, energyPath, "1000000\n")
	orig := raplEnergyUJPath
	raplEnergyUJPath = energyPath
	defer func() { raplEnergyUJPath = orig }()

	store := busdata.New()
	store.ResetDataCollectionTimeout()
	w := New(&procexec.FakeRunner{}, store, nil, nil)

	first := w.pollCPU()
	assert.Equal(t, 0.0, first.PowerWatts)

	w.lastRAPLSample = time.Now().Add(-1 * time.Second)
	writeFile(t, energyPath, "6000000\n")
	second := w.pollCPU()
	assert.InDelta(t, 5.0, second.PowerWatts, 0.5)
}

func TestPollCPUHandlesCounterWraparound(t *testing.T) {
	dir := t.TempDir()
	energyPath := filepath.Join(dir, "energy_uj")
	rangePath := filepath.Join(dir, "max_energy_range_uj")
	writeFile(t, energyPath, "9000000\n")
	writeFile(t, rangePath, "10000000\n")
	origEnergy, origRange := raplEnergyUJPath, raplMaxRangeUJPath
	raplEnergyUJPath, raplMaxRangeUJPath = energyPath, rangePath
	defer func() { raplEnergyUJPath, raplMaxRangeUJPath = origEnergy, origRange }()

	store := busdata.New()
	w := New(&procexec.FakeRunner{}, store, nil, nil)
	w.pollCPU()

	w.lastRAPLSample = time.Now().Add(-1 * time.Second)
	writeFile(t, energyPath, "1000000\n") // wrapped past max_energy_range_uj
	second := w.pollCPU()
	assert.Greater(t, second.PowerWatts, 0.0)
}

func TestClassifyPrimeModeSingleDeviceIsIntel(t *testing.T) {
	dir := t.TempDir()
	bootVGA := filepath.Join(dir, "0000:00:02.0", "boot_vga")
	writeFile(t, bootVGA, "1\n")

	orig := primeBootVGAGlob
	primeBootVGAGlob = filepath.Join(dir, "*", "boot_vga")
	defer func() { primeBootVGAGlob = orig }()

	store := busdata.New()
	w := New(&procexec.FakeRunner{}, store, nil, nil)
	assert.Equal(t, PrimeIntel, w.classifyPrimeMode())
}

func TestClassifyPrimeModeMultipleDevicesIsHybrid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0000:00:02.0", "boot_vga"), "1\n")
	writeFile(t, filepath.Join(dir, "0000:01:00.0", "boot_vga"), "0\n")

	orig := primeBootVGAGlob
	primeBootVGAGlob = filepath.Join(dir, "*", "boot_vga")
	defer func() { primeBootVGAGlob = orig }()

	store := busdata.New()
	w := New(&procexec.FakeRunner{}, store, nil, nil)
	assert.Equal(t, PrimeHybrid, w.classifyPrimeMode())
}

func TestTickPublishesWebcamInfo(t *testing.T) {
	store := busdata.New()
	store.ResetDataCollectionTimeout()
	w := New(&procexec.FakeRunner{}, store, fakeWebcam{available: true, enabled: false}, nil)

	require.NoError(t, w.Tick(context.Background()))

	var webcam WebcamInfo
	require.NoError(t, json.Unmarshal([]byte(store.Blob(busdata.BlobWebcamInfo)), &webcam))
	assert.True(t, webcam.Available)
	assert.False(t, webcam.Enabled)
}
