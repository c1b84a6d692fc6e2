// Package display manages screen backlight brightness and, on X11
// sessions only, refresh-rate selection via xrandr.
package display

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

const backlightClassRoot = "/sys/class/backlight"

// BacklightController reads and writes brightness through one
// /sys/class/backlight/<driver> directory. amdgpu_bl drivers report
// brightness inverted relative to every other driver: writing the
// requested value dims the screen the wrong direction, so isAmdgpuBl
// flips every write to (max - requested).
type BacklightController struct {
	basePath      string
	driverName    string
	maxBrightness int32
	isAmdgpuBl    bool

	brightnessNode *sysfs.Node
}

// NewBacklightController returns a controller bound to basePath (e.g.
// "/sys/class/backlight/intel_backlight").
func NewBacklightController(basePath string, maxBrightness int32, isAmdgpuBl bool) *BacklightController {
	return &BacklightController{
		basePath:       basePath,
		driverName:     filepath.Base(basePath),
		maxBrightness:  maxBrightness,
		isAmdgpuBl:     isAmdgpuBl,
		brightnessNode: sysfs.New(filepath.Join(basePath, "brightness")),
	}
}

// DriverName returns the backlight driver's directory name.
func (b *BacklightController) DriverName() string { return b.driverName }

// MaxBrightness returns the hardware's maximum raw brightness value.
func (b *BacklightController) MaxBrightness() int32 { return b.maxBrightness }

// GetBrightness returns the current brightness as a raw hardware value,
// un-inverting it first if this is an amdgpu_bl driver.
func (b *BacklightController) GetBrightness() int32 {
	raw, err := b.brightnessNode.ReadInt32()
	if err != nil {
		return 0
	}
	if b.isAmdgpuBl {
		return b.maxBrightness - raw
	}
	return raw
}

// SetBrightness writes a raw hardware brightness value, inverting it
// first if this is an amdgpu_bl driver.
func (b *BacklightController) SetBrightness(raw int32) bool {
	if b.isAmdgpuBl {
		raw = b.maxBrightness - raw
	}
	return b.brightnessNode.WriteInt32(raw) == nil
}

// SetBrightnessPercent clamps percent to [0,100] and scales it against
// MaxBrightness before writing.
func (b *BacklightController) SetBrightnessPercent(percent int32) bool {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	raw := int32(int64(percent) * int64(b.maxBrightness) / 100)
	return b.SetBrightness(raw)
}

// BrightnessPercent returns the current brightness scaled to [0,100].
func (b *BacklightController) BrightnessPercent() int32 {
	if b.maxBrightness == 0 {
		return 0
	}
	return int32(int64(b.GetBrightness()) * 100 / int64(b.maxBrightness))
}

// discoverBacklight enumerates /sys/class/backlight/* and prefers a
// non-amdgpu_bl driver; if only amdgpu_bl entries exist, the first one
// is used with the inversion workaround enabled.
func discoverBacklight(root string) *BacklightController {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var amdgpuCandidate string
	for _, name := range names {
		if strings.Contains(name, "amdgpu_bl") {
			if amdgpuCandidate == "" {
				amdgpuCandidate = name
			}
			continue
		}
		return newFromDriver(root, name, false)
	}

	if amdgpuCandidate != "" {
		return newFromDriver(root, amdgpuCandidate, true)
	}
	return nil
}

func newFromDriver(root, name string, isAmdgpuBl bool) *BacklightController {
	base := filepath.Join(root, name)
	maxNode := sysfs.New(filepath.Join(base, "max_brightness"))
	maxV, err := maxNode.ReadInt32()
	if err != nil || maxV <= 0 {
		maxV = 100
	}
	return NewBacklightController(base, maxV, isAmdgpuBl)
}

// DiscoverBacklight enumerates the standard backlight class directory.
func DiscoverBacklight() *BacklightController {
	return discoverBacklight(backlightClassRoot)
}
