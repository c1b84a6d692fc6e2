// Package profile defines the Profile record and its JSON codec. A
// Profile is a flat, mostly-optional policy document: keeping it flat
// rather than a class hierarchy keeps the codec a direct field map, with
// missing fields defaulting rather than rejecting the document.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/tuxedocomputers/tccd/internal/fancurve"
)

// ChargeThresholdUnset is the sentinel meaning "do not touch this
// threshold" for ChargeStartThreshold/ChargeEndThreshold.
const ChargeThresholdUnset = -1

// Display holds screen policy.
type Display struct {
	Brightness     int32 `json:"brightness"`
	RefreshRateHz  int32 `json:"refreshRate"`
	ResolutionX    int32 `json:"resolutionX"`
	ResolutionY    int32 `json:"resolutionY"`
	UseBrightness  bool  `json:"useBrightness"`
	UseRefreshRate bool  `json:"useRefreshRate"`
	UseResolution  bool  `json:"useResolution"`
}

// CPU holds CPU governor/frequency policy.
type CPU struct {
	Governor      string `json:"governor"`
	EPP           string `json:"epp"`
	NoTurbo       bool   `json:"noTurbo"`
	OnlineCores   *int32 `json:"onlineCores,omitempty"`
	ScalingMinKHz *int32 `json:"scalingMinKHz,omitempty"`
	ScalingMaxKHz *int32 `json:"scalingMaxKHz,omitempty"`
}

// Webcam holds webcam switch policy.
type Webcam struct {
	Status    bool `json:"status"`
	UseStatus bool `json:"useStatus"`
}

// Fan holds fan control policy, including optionally-embedded tables.
type Fan struct {
	UseControl     bool   `json:"useControl"`
	FanProfile     string `json:"fanProfile"`
	OffsetFanspeed int32  `json:"offsetFanspeed"`
	SameSpeed      bool   `json:"sameSpeed"`
	AutoControlWC  bool   `json:"autoControlWC"`

	TableCPU            *fancurve.Table `json:"tableCPU,omitempty"`
	TableGPU            *fancurve.Table `json:"tableGPU,omitempty"`
	TablePump           *fancurve.Table `json:"tablePump,omitempty"`
	TableWaterCoolerFan *fancurve.Table `json:"tableWaterCoolerFan,omitempty"`
}

// NVIDIAPowerCTRLProfile holds the cTGP dynamic-boost offset, in watts,
// signed.
type NVIDIAPowerCTRLProfile struct {
	CTGPOffsetWatts int32 `json:"cTGPOffset"`
}

// Keyboard holds the keyboard backlight state blob and selected preset.
type Keyboard struct {
	BacklightStates json.RawMessage `json:"backlightStates,omitempty"`
	SelectedPreset  string          `json:"selectedPreset,omitempty"`
}

// Profile is a named, ID'd policy record. IDs are opaque UUID-like
// strings; names are user-visible and may collide across custom
// profiles (see the coordinator's save/update collision rules).
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Display Display `json:"display"`
	CPU     CPU     `json:"cpu"`
	Webcam  Webcam  `json:"webcam"`
	Fan     Fan     `json:"fan"`

	ODMProfile     *string `json:"odmProfile,omitempty"`
	ODMPowerLimits []int32 `json:"odmPowerLimits,omitempty"`

	NVIDIAPowerCTRLProfile *NVIDIAPowerCTRLProfile `json:"nvidiaPowerCTRLProfile,omitempty"`

	Keyboard Keyboard `json:"keyboard"`

	ChargingProfile      string `json:"chargingProfile,omitempty"`
	ChargingPriority     string `json:"chargingPriority,omitempty"`
	ChargeType           string `json:"chargeType,omitempty"`
	ChargeStartThreshold int32  `json:"chargeStartThreshold"`
	ChargeEndThreshold   int32  `json:"chargeEndThreshold"`
}

// ParseJSON deserializes a Profile permissively: missing fields take
// their zero value, unknown fields are ignored by encoding/json. It
// fails only on malformed JSON or an invalid embedded fan-table shape
// (length != 17 or non-monotonic temperatures), the latter surfacing
// through fancurve.Table's own UnmarshalJSON.
func ParseJSON(data []byte) (*Profile, error) {
	p := &Profile{
		ChargeStartThreshold: ChargeThresholdUnset,
		ChargeEndThreshold:   ChargeThresholdUnset,
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile json: %w", err)
	}
	return p, nil
}

// ToJSON serializes p as a stable, forward-compatible JSON object, eliding
// absent optional fields rather than emitting null or zero placeholders.
func (p *Profile) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// IsReadOnly reports whether id belongs to the default-profile set, which
// rejects every mutating RPC (SaveCustomProfile/UpdateCustomProfile/
// DeleteCustomProfile).
func IsReadOnly(id string, defaults map[string]*Profile) bool {
	_, ok := defaults[id]
	return ok
}
