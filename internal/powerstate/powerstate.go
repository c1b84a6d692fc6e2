// Package powerstate resolves which of the three power buckets the
// machine is currently in: running on mains, running on battery, or
// docked to the water cooler. The coordinator re-resolves this once per
// tick and maps it to a settings.StateKey to decide which profile to
// apply.
package powerstate

import (
	"os"
	"path/filepath"
	"strings"
)

// State is one of the three power buckets a profile can be bound to.
type State int

const (
	AC State = iota
	Battery
	WaterCooler
)

func (s State) String() string {
	switch s {
	case AC:
		return "AC"
	case Battery:
		return "BAT"
	case WaterCooler:
		return "WC"
	default:
		return "AC"
	}
}

const powerSupplyRoot = "/sys/class/power_supply"

// Determine scans /sys/class/power_supply for a power supply of type
// "Mains" and reports AC if it is online, Battery otherwise. A missing
// power_supply class tree, or no Mains entry at all, defaults to AC —
// the same fail-safe default the coordinator uses everywhere else.
// waterCoolerConnected supersedes the sysfs scan entirely, matching the
// original's ordering where a connected water cooler always wins.
func Determine(waterCoolerConnected bool) State {
	if waterCoolerConnected {
		return WaterCooler
	}
	return determineFromSysfs(powerSupplyRoot)
}

func determineFromSysfs(root string) State {
	entries, err := os.ReadDir(root)
	if err != nil {
		return AC
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		base := filepath.Join(root, entry.Name())

		typ, err := readFirstLine(filepath.Join(base, "type"))
		if err != nil || typ != "Mains" {
			continue
		}

		online, err := readFirstLine(filepath.Join(base, "online"))
		if err != nil {
			continue
		}
		if online == "1" {
			return AC
		}
		return Battery
	}

	return AC
}

func readFirstLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}

// StateKey names map State values to the settings package's state-map
// keys ("power_ac", "power_bat", "power_wc") without importing the
// settings package, keeping powerstate a leaf dependency.
func (s State) StateKey() string {
	switch s {
	case AC:
		return "power_ac"
	case Battery:
		return "power_bat"
	case WaterCooler:
		return "power_wc"
	default:
		return "power_ac"
	}
}
