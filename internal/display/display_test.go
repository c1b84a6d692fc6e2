package display

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/procexec"
)

func writeBacklightDriver(t *testing.T, root, name string, max, brightness int32) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(itoa(max)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brightness"), []byte(itoa(brightness)), 0o644))
}

func itoa(v int32) string {
	return string([]byte{byte('0' + v/100), byte('0' + (v/10)%10), byte('0' + v%10)})
}

func TestDiscoverBacklightPrefersNonAmdgpu(t *testing.T) {
	root := t.TempDir()
	writeBacklightDriver(t, root, "amdgpu_bl0", 255, 100)
	writeBacklightDriver(t, root, "intel_backlight", 937, 500)

	c := discoverBacklight(root)
	require.NotNil(t, c)
	assert.Equal(t, "intel_backlight", c.DriverName())
	assert.False(t, c.isAmdgpuBl)
}

func TestDiscoverBacklightFallsBackToAmdgpu(t *testing.T) {
	root := t.TempDir()
	writeBacklightDriver(t, root, "amdgpu_bl0", 255, 100)

	c := discoverBacklight(root)
	require.NotNil(t, c)
	assert.Equal(t, "amdgpu_bl0", c.DriverName())
	assert.True(t, c.isAmdgpuBl)
}

func TestBacklightInversionWorkaround(t *testing.T) {
	root := t.TempDir()
	writeBacklightDriver(t, root, "amdgpu_bl0", 100, 0)

	c := newFromDriver(root, "amdgpu_bl0", true)
	require.True(t, c.SetBrightness(30))

	data, err := os.ReadFile(filepath.Join(root, "amdgpu_bl0", "brightness"))
	require.NoError(t, err)
	assert.Equal(t, "70", string(data))
}

func TestSetBrightnessPercentClampsAndScales(t *testing.T) {
	root := t.TempDir()
	writeBacklightDriver(t, root, "intel_backlight", 100, 0)

	c := newFromDriver(root, "intel_backlight", false)
	require.True(t, c.SetBrightnessPercent(150))

	assert.Equal(t, int32(100), c.GetBrightness())
}

func TestParseXrandrOutput(t *testing.T) {
	output := `Screen 0: minimum 320 x 200, current 1920 x 1080, maximum 8192 x 8192
eDP-1 connected primary 1920x1080+0+0 (normal left inverted right x axis y axis) 344mm x 193mm
   1920x1080     60.00*+  59.93    59.96
   1680x1050     59.95
HDMI-1 disconnected (normal left inverted right x axis y axis)
`
	info := ParseXrandrOutput(output)
	require.NotNil(t, info)
	assert.Equal(t, "eDP-1", info.DisplayName)
	require.Len(t, info.DisplayModes, 2)
	assert.Equal(t, 1920, info.DisplayModes[0].XResolution)
	assert.Contains(t, info.DisplayModes[0].RefreshRates, 60.00)
	assert.Equal(t, 1920, info.ActiveMode.XResolution)
	assert.Equal(t, []float64{60.00}, info.ActiveMode.RefreshRates)
}

func TestParseXrandrOutputNoConnectedDisplay(t *testing.T) {
	info := ParseXrandrOutput("Screen 0: minimum 320 x 200\nHDMI-1 disconnected\n")
	assert.Nil(t, info)
}

func TestDetectSessionType(t *testing.T) {
	assert.Equal(t, SessionX11, DetectSessionType("x11"))
	assert.Equal(t, SessionWayland, DetectSessionType("wayland"))
	assert.Equal(t, SessionUnknown, DetectSessionType("tty"))
}

func TestLoggedInUsersDeduplicates(t *testing.T) {
	runner := &procexec.FakeRunner{Outputs: map[string]string{
		"who ": "alice  tty1  2026-07-31 09:00\nalice  pts/0 2026-07-31 09:05\nbob    tty2  2026-07-31 09:10\n",
	}}
	users, err := LoggedInUsers(context.Background(), runner)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestSetRefreshRateInvokesXrandr(t *testing.T) {
	runner := &procexec.FakeRunner{Outputs: map[string]string{
		"xrandr --output eDP-1 --rate 144": "",
	}}
	assert.True(t, SetRefreshRate(context.Background(), runner, "eDP-1", 144))
}
