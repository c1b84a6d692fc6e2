// Package settings owns the daemon's two persisted files: the settings
// file (state map, feature toggles, custom profiles) and the autosave
// file (ephemeral values like last-known display brightness that survive
// a restart but aren't part of user-owned settings). Both are written
// atomically (write-temp, then rename) so a crash mid-write never leaves
// a half-written file behind.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tuxedocomputers/tccd/internal/daemonerrors"
	"github.com/tuxedocomputers/tccd/internal/profile"
)

// StateKey identifies one of the three power-source buckets the state
// map resolves a profile for.
type StateKey string

const (
	StateAC          StateKey = "power_ac"
	StateBattery     StateKey = "power_bat"
	StateWaterCooler StateKey = "power_wc"
)

// AllStateKeys lists every key the state map must resolve, in a fixed
// order used when self-healing and when serializing.
var AllStateKeys = []StateKey{StateAC, StateBattery, StateWaterCooler}

// Settings is the daemon's persisted, user-owned configuration.
type Settings struct {
	Fahrenheit   bool                `json:"fahrenheit"`
	StateMap     map[StateKey]string `json:"stateMap"`
	ShutdownTime string              `json:"shutdownTime,omitempty"`

	CPUSettingsEnabled              bool `json:"cpuSettingsEnabled"`
	FanControlEnabled               bool `json:"fanControlEnabled"`
	KeyboardBacklightControlEnabled bool `json:"keyboardBacklightControlEnabled"`

	ChargingProfile  string `json:"chargingProfile,omitempty"`
	ChargingPriority string `json:"chargingPriority,omitempty"`

	YCbCr420Overrides []string `json:"ycbcr420Overrides,omitempty"`

	// Profiles maps profile ID to its serialized profile JSON, exactly
	// as it will be written to disk; custom-profile mutation methods
	// write through this map, and profile lookups parse from it.
	Profiles map[string]json.RawMessage `json:"profiles"`
}

// New returns an empty Settings with every map initialized and every
// state key pointing at fallbackProfileID.
func New(fallbackProfileID string) *Settings {
	s := &Settings{
		StateMap: make(map[StateKey]string, len(AllStateKeys)),
		Profiles: make(map[string]json.RawMessage),
	}
	for _, key := range AllStateKeys {
		s.StateMap[key] = fallbackProfileID
	}
	return s
}

// Autosave holds ephemeral values that survive a restart but are not
// part of user-owned settings.
type Autosave struct {
	DisplayBrightness int32 `json:"displayBrightness"`
}

// Load reads and decodes settings.json from dir. A missing file returns
// a KindIONotPresent error, on which the caller falls back to New(...).
func Load(dir string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, daemonerrors.Wrap(err, daemonerrors.KindIONotPresent, "settings.Load")
		}
		return nil, daemonerrors.Wrap(err, daemonerrors.KindIOTransient, "settings.Load")
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, daemonerrors.Wrap(err, daemonerrors.KindParseInvalid, "settings.Load")
	}
	if s.StateMap == nil {
		s.StateMap = make(map[StateKey]string, len(AllStateKeys))
	}
	if s.Profiles == nil {
		s.Profiles = make(map[string]json.RawMessage)
	}
	return &s, nil
}

// Save atomically writes settings.json into dir: write to a temp file in
// the same directory, then rename over the target, so readers never
// observe a partially written file.
func (s *Settings) Save(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return daemonerrors.Wrap(err, daemonerrors.KindParseInvalid, "settings.Save")
	}
	return atomicWrite(dir, "settings.json", data)
}

// LoadAutosave reads and decodes autosave.json from dir.
func LoadAutosave(dir string) (*Autosave, error) {
	data, err := os.ReadFile(filepath.Join(dir, "autosave.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, daemonerrors.Wrap(err, daemonerrors.KindIONotPresent, "settings.LoadAutosave")
		}
		return nil, daemonerrors.Wrap(err, daemonerrors.KindIOTransient, "settings.LoadAutosave")
	}

	var a Autosave
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, daemonerrors.Wrap(err, daemonerrors.KindParseInvalid, "settings.LoadAutosave")
	}
	return &a, nil
}

// Save atomically writes autosave.json into dir.
func (a *Autosave) Save(dir string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return daemonerrors.Wrap(err, daemonerrors.KindParseInvalid, "settings.Autosave.Save")
	}
	return atomicWrite(dir, "autosave.json", data)
}

func atomicWrite(dir, name string, data []byte) error {
	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return daemonerrors.Wrap(err, daemonerrors.KindIOTransient, "settings.atomicWrite")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return daemonerrors.Wrap(err, daemonerrors.KindIOTransient, "settings.atomicWrite")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return daemonerrors.Wrap(err, daemonerrors.KindIOTransient, "settings.atomicWrite")
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return daemonerrors.Wrap(err, daemonerrors.KindIOTransient, "settings.atomicWrite")
	}
	return nil
}

// HealStateMap replaces any state-map entry whose profile id is not
// found in either custom (s.Profiles) or defaults with fallbackID, the
// first known profile. It reports which keys were healed, so the caller
// can decide whether to persist immediately.
func (s *Settings) HealStateMap(defaults *profile.DefaultTable, fallbackID string) (healed []StateKey) {
	for _, key := range AllStateKeys {
		id, ok := s.StateMap[key]
		if ok {
			_, inCustom := s.Profiles[id]
			if inCustom || defaults.Has(id) {
				continue
			}
		}
		s.StateMap[key] = fallbackID
		healed = append(healed, key)
	}
	return healed
}

// ResolveProfileID returns the settings/default fallback rules used by
// HealStateMap and the coordinator's boot path: fallbackID is the first
// default profile id, or an error if there are no default profiles at
// all (a configuration error the daemon cannot run with).
func ResolveProfileID(defaults *profile.DefaultTable) (string, error) {
	first := defaults.First()
	if first == nil {
		return "", fmt.Errorf("no default profiles configured")
	}
	return first.ID, nil
}
