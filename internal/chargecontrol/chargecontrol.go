// Package chargecontrol wraps a single /sys/class/power_supply/<name>
// entry: type, online status, and the battery charge-threshold/
// charge-type controls the profile-settings worker exposes.
package chargecontrol

import (
	"os"
	"path/filepath"

	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

// Type is the kernel-reported power_supply type.
type Type int

const (
	TypeUnknown Type = iota
	TypeMains
	TypeBattery
)

// ChargeThresholdUnavailable is returned for a threshold read when the
// sysfs node is absent, mirroring the original's "-1 means unavailable"
// convention.
const ChargeThresholdUnavailable = -1

// Supply wraps one power_supply sysfs directory.
type Supply struct {
	basePath string
}

// New returns a Supply bound to basePath (e.g. "/sys/class/power_supply/BAT0").
func New(basePath string) *Supply {
	return &Supply{basePath: basePath}
}

func (s *Supply) node(name string) *sysfs.Node {
	return sysfs.New(filepath.Join(s.basePath, name))
}

// IsOnline reports whether the supply is actively delivering power.
func (s *Supply) IsOnline() bool {
	v, err := s.node("online").ReadInt64()
	if err != nil {
		return false
	}
	return v != 0
}

// Type reports the supply's kernel-reported type.
func (s *Supply) Type() Type {
	v, err := s.node("type").ReadString()
	if err != nil {
		return TypeUnknown
	}
	switch v {
	case "Battery":
		return TypeBattery
	case "Mains":
		return TypeMains
	default:
		return TypeUnknown
	}
}

// ChargeControlStartThreshold returns the start threshold percentage, or
// ChargeThresholdUnavailable if the node is absent.
func (s *Supply) ChargeControlStartThreshold() int {
	v, err := s.node("charge_control_start_threshold").ReadInt64()
	if err != nil {
		return ChargeThresholdUnavailable
	}
	return int(v)
}

// SetChargeControlStartThreshold writes the start threshold percentage.
func (s *Supply) SetChargeControlStartThreshold(threshold int) bool {
	return s.node("charge_control_start_threshold").WriteInt64(int64(threshold)) == nil
}

// ChargeControlEndThreshold returns the end threshold percentage, or
// ChargeThresholdUnavailable if the node is absent.
func (s *Supply) ChargeControlEndThreshold() int {
	v, err := s.node("charge_control_end_threshold").ReadInt64()
	if err != nil {
		return ChargeThresholdUnavailable
	}
	return int(v)
}

// SetChargeControlEndThreshold writes the end threshold percentage.
func (s *Supply) SetChargeControlEndThreshold(threshold int) bool {
	return s.node("charge_control_end_threshold").WriteInt64(int64(threshold)) == nil
}

// ChargeType is the kernel's reported charge_type value, per the
// sysfs-class-power ABI documentation (normal/trickle/fast/.../bypass).
type ChargeType string

const (
	ChargeTypeUnknown      ChargeType = "Unknown"
	ChargeTypeNotAvailable ChargeType = "N/A"
	ChargeTypeTrickle      ChargeType = "Trickle"
	ChargeTypeFast         ChargeType = "Fast"
	ChargeTypeStandard     ChargeType = "Standard"
	ChargeTypeAdaptive     ChargeType = "Adaptive"
	ChargeTypeCustom       ChargeType = "Custom"
	ChargeTypeLongLife     ChargeType = "LongLife"
	ChargeTypeBypass       ChargeType = "Bypass"
)

// ChargeType reads the supply's charge_type node.
func (s *Supply) ChargeType() ChargeType {
	v, err := s.node("charge_type").ReadString()
	if err != nil {
		return ChargeTypeUnknown
	}
	switch ChargeType(v) {
	case ChargeTypeTrickle, ChargeTypeFast, ChargeTypeStandard, ChargeTypeAdaptive,
		ChargeTypeCustom, ChargeTypeLongLife, ChargeTypeBypass, ChargeTypeNotAvailable:
		return ChargeType(v)
	default:
		return ChargeTypeUnknown
	}
}

// SetChargeType writes the charge_type node.
func (s *Supply) SetChargeType(t string) bool {
	return s.node("charge_type").WriteString(t) == nil
}

// ChargeControlStartAvailableThresholds reads the unofficial
// space-delimited list of selectable start thresholds.
func (s *Supply) ChargeControlStartAvailableThresholds() []int32 {
	v, err := s.node("charge_control_start_available_thresholds").ReadIntList(' ')
	if err != nil {
		return nil
	}
	return v
}

// ChargeControlEndAvailableThresholds reads the unofficial
// space-delimited list of selectable end thresholds.
func (s *Supply) ChargeControlEndAvailableThresholds() []int32 {
	v, err := s.node("charge_control_end_available_thresholds").ReadIntList(' ')
	if err != nil {
		return nil
	}
	return v
}

// powerSupplyRoot is a var, not a const, so tests can point it at a
// temporary directory instead of the real /sys/class/power_supply.
var powerSupplyRoot = "/sys/class/power_supply"

// Batteries enumerates every battery-typed entry under
// /sys/class/power_supply.
func Batteries() []*Supply {
	entries, err := os.ReadDir(powerSupplyRoot)
	if err != nil {
		return nil
	}

	var batteries []*Supply
	for _, entry := range entries {
		isSymlink := entry.Type()&os.ModeSymlink != 0
		if !entry.IsDir() && !isSymlink {
			continue
		}
		s := New(filepath.Join(powerSupplyRoot, entry.Name()))
		if s.Type() == TypeBattery {
			batteries = append(batteries, s)
		}
	}
	return batteries
}

// FirstBattery returns the first discovered battery supply, or nil.
func FirstBattery() *Supply {
	batteries := Batteries()
	if len(batteries) == 0 {
		return nil
	}
	return batteries[0]
}
