// Package keyboard detects the tuxedo_keyboard backlight interface and
// applies per-profile zone colors and brightness. Zone layout (1 for a
// single-zone backlight, 3 for left/center/right, 4 with an extra zone)
// varies by model, so the controller probes for each zone node rather
// than assuming a fixed count.
package keyboard

import (
	"encoding/json"

	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

const (
	brightnessPath    = "/sys/devices/platform/tuxedo_keyboard/brightness"
	maxBrightnessPath = "/sys/devices/platform/tuxedo_keyboard/brightness_max"
	statePath         = "/sys/devices/platform/tuxedo_keyboard/state"
	modePath          = "/sys/devices/platform/tuxedo_keyboard/mode"
)

var zonePaths = []string{
	"/sys/devices/platform/tuxedo_keyboard/color_left",
	"/sys/devices/platform/tuxedo_keyboard/color_center",
	"/sys/devices/platform/tuxedo_keyboard/color_right",
	"/sys/devices/platform/tuxedo_keyboard/color_extra",
}

// Color is one zone's RGB backlight color, hex-encoded the way
// tuxedo_keyboard's color_* nodes accept ("RRGGBB").
type Color struct {
	R, G, B byte
}

// Capabilities describes what this model's keyboard backlight supports.
type Capabilities struct {
	Supported     bool    `json:"supported"`
	Zones         int     `json:"zones"`
	MaxBrightness int32   `json:"maxBrightness"`
	Modes         []string `json:"modes,omitempty"`
}

// BacklightState is the per-profile JSON shape stored in
// profile.Keyboard.BacklightStates.
type BacklightState struct {
	On         bool    `json:"on"`
	Brightness int32   `json:"brightness"`
	Mode       string  `json:"mode,omitempty"`
	Zones      []Color `json:"zones,omitempty"`
}

// Controller reads and writes the keyboard backlight sysfs nodes.
type Controller struct {
	brightness    *sysfs.Node
	maxBrightness *sysfs.Node
	state         *sysfs.Node
	mode          *sysfs.Node
	zones         []*sysfs.Node
}

// New probes the standard tuxedo_keyboard sysfs paths and returns a
// bound Controller; callers check Capabilities().Supported before
// relying on it.
func New() *Controller {
	c := &Controller{
		brightness:    sysfs.New(brightnessPath),
		maxBrightness: sysfs.New(maxBrightnessPath),
		state:         sysfs.New(statePath),
		mode:          sysfs.New(modePath),
	}
	for _, p := range zonePaths {
		node := sysfs.New(p)
		if node.IsAvailable() {
			c.zones = append(c.zones, node)
		}
	}
	return c
}

// Capabilities reports the detected backlight shape.
func (c *Controller) Capabilities() Capabilities {
	if !c.brightness.IsAvailable() {
		return Capabilities{}
	}
	caps := Capabilities{
		Supported: true,
		Zones:     len(c.zones),
	}
	if len(c.zones) == 0 {
		caps.Zones = 1 // single-zone backlights expose state/brightness only
	}
	if max, err := c.maxBrightness.ReadInt32(); err == nil {
		caps.MaxBrightness = max
	} else {
		caps.MaxBrightness = 255
	}
	return caps
}

// CapabilitiesJSON serializes Capabilities for the RPC surface.
func (c *Controller) CapabilitiesJSON() (json.RawMessage, error) {
	return json.Marshal(c.Capabilities())
}

// StatesJSON reads back the live backlight state as a BacklightState.
func (c *Controller) StatesJSON() (json.RawMessage, error) {
	if !c.brightness.IsAvailable() {
		return json.Marshal(BacklightState{})
	}
	s := BacklightState{}
	if v, err := c.state.ReadBool(); err == nil {
		s.On = v
	}
	if v, err := c.brightness.ReadInt32(); err == nil {
		s.Brightness = v
	}
	if v, err := c.mode.ReadString(); err == nil {
		s.Mode = v
	}
	for _, zone := range c.zones {
		hex, err := zone.ReadString()
		if err != nil {
			continue
		}
		s.Zones = append(s.Zones, parseHexColor(hex))
	}
	return json.Marshal(s)
}

// ApplyBacklightStates parses raw as a BacklightState and writes it to
// the detected sysfs nodes, reporting false on any malformed payload or
// on an unsupported keyboard.
func (c *Controller) ApplyBacklightStates(raw json.RawMessage) bool {
	if len(raw) == 0 || !c.brightness.IsAvailable() {
		return false
	}
	var s BacklightState
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}

	ok := c.state.WriteBool(s.On) == nil
	ok = c.brightness.WriteInt32(s.Brightness) == nil && ok
	if s.Mode != "" && c.mode.IsAvailable() {
		ok = c.mode.WriteString(s.Mode) == nil && ok
	}
	for i, zone := range c.zones {
		if i >= len(s.Zones) {
			break
		}
		ok = zone.WriteString(formatHexColor(s.Zones[i])) == nil && ok
	}
	return ok
}

func formatHexColor(c Color) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 6)
	for i, v := range [3]byte{c.R, c.G, c.B} {
		b[i*2] = hexDigits[v>>4]
		b[i*2+1] = hexDigits[v&0x0f]
	}
	return string(b)
}

func parseHexColor(hex string) Color {
	if len(hex) != 6 {
		return Color{}
	}
	return Color{
		R: hexByte(hex[0:2]),
		G: hexByte(hex[2:4]),
		B: hexByte(hex[4:6]),
	}
}

func hexByte(pair string) byte {
	var v byte
	for _, c := range []byte(pair) {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= c - '0'
		case c >= 'a' && c <= 'f':
			v |= c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v |= c - 'A' + 10
		}
	}
	return v
}
