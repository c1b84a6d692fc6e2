package keyboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newControllerAt(t *testing.T, dir string, zoneCount int) *Controller {
	t.Helper()
	c := &Controller{
		brightness:    sysfs.New(filepath.Join(dir, "brightness")),
		maxBrightness: sysfs.New(filepath.Join(dir, "brightness_max")),
		state:         sysfs.New(filepath.Join(dir, "state")),
		mode:          sysfs.New(filepath.Join(dir, "mode")),
	}
	for i := 0; i < zoneCount; i++ {
		path := filepath.Join(dir, "color_zone"+string(rune('0'+i)))
		writeFile(t, path, "000000")
		c.zones = append(c.zones, sysfs.New(path))
	}
	return c
}

func TestCapabilitiesUnsupportedWhenBrightnessMissing(t *testing.T) {
	c := newControllerAt(t, t.TempDir(), 0)
	assert.False(t, c.Capabilities().Supported)
}

func TestCapabilitiesReportsZoneCountAndMaxBrightness(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "brightness"), "128")
	writeFile(t, filepath.Join(dir, "brightness_max"), "255")

	c := newControllerAt(t, dir, 3)
	caps := c.Capabilities()
	assert.True(t, caps.Supported)
	assert.Equal(t, 3, caps.Zones)
	assert.Equal(t, int32(255), caps.MaxBrightness)
}

func TestStatesJSONReadsLiveState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "brightness"), "200")
	writeFile(t, filepath.Join(dir, "brightness_max"), "255")
	writeFile(t, filepath.Join(dir, "state"), "1")
	writeFile(t, filepath.Join(dir, "mode"), "single_color")

	c := newControllerAt(t, dir, 1)
	writeFile(t, filepath.Join(dir, "color_zone0"), "ff8800")

	raw, err := c.StatesJSON()
	require.NoError(t, err)

	var s BacklightState
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.True(t, s.On)
	assert.Equal(t, int32(200), s.Brightness)
	assert.Equal(t, "single_color", s.Mode)
	require.Len(t, s.Zones, 1)
	assert.Equal(t, Color{R: 0xff, G: 0x88, B: 0x00}, s.Zones[0])
}

func TestApplyBacklightStatesWritesEveryZone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "brightness"), "0")
	writeFile(t, filepath.Join(dir, "brightness_max"), "255")
	writeFile(t, filepath.Join(dir, "state"), "0")
	writeFile(t, filepath.Join(dir, "mode"), "")

	c := newControllerAt(t, dir, 2)

	payload, err := json.Marshal(BacklightState{
		On:         true,
		Brightness: 150,
		Mode:       "breathing",
		Zones:      []Color{{R: 0x10, G: 0x20, B: 0x30}, {R: 0xaa, G: 0xbb, B: 0xcc}},
	})
	require.NoError(t, err)

	assert.True(t, c.ApplyBacklightStates(payload))

	brightness, err := c.brightness.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(150), brightness)

	on, err := c.state.ReadBool()
	require.NoError(t, err)
	assert.True(t, on)

	zone0, err := c.zones[0].ReadString()
	require.NoError(t, err)
	assert.Equal(t, "102030", zone0)

	zone1, err := c.zones[1].ReadString()
	require.NoError(t, err)
	assert.Equal(t, "aabbcc", zone1)
}

func TestApplyBacklightStatesRejectsMalformedPayload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "brightness"), "0")

	c := newControllerAt(t, dir, 0)
	assert.False(t, c.ApplyBacklightStates(json.RawMessage("not json")))
}

func TestApplyBacklightStatesFalseWhenUnsupported(t *testing.T) {
	c := newControllerAt(t, t.TempDir(), 0)
	payload, err := json.Marshal(BacklightState{On: true})
	require.NoError(t, err)
	assert.False(t, c.ApplyBacklightStates(payload))
}
