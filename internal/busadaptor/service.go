package busadaptor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/chargecontrol"
	"github.com/tuxedocomputers/tccd/internal/cpupolicy"
	"github.com/tuxedocomputers/tccd/internal/device"
	"github.com/tuxedocomputers/tccd/internal/display"
	"github.com/tuxedocomputers/tccd/internal/fancontrol"
	"github.com/tuxedocomputers/tccd/internal/fancurve"
	"github.com/tuxedocomputers/tccd/internal/fnlock"
	"github.com/tuxedocomputers/tccd/internal/hardwaremonitor"
	"github.com/tuxedocomputers/tccd/internal/keyboard"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/powerstate"
	"github.com/tuxedocomputers/tccd/internal/procexec"
	"github.com/tuxedocomputers/tccd/internal/profile"
	"github.com/tuxedocomputers/tccd/internal/profilesettings"
	"github.com/tuxedocomputers/tccd/internal/settings"
	"github.com/tuxedocomputers/tccd/internal/watercooler"
)

// Version is the daemon's reported uccd-compatible version string.
const Version = "1.0.0"

// Coordinator is the subset of coordinator.Coordinator the adaptor
// calls; an interface so this package doesn't need to import
// internal/coordinator just to exercise it from tests.
type Coordinator interface {
	ActiveProfileID() string
	PowerState() powerstate.State
	SetCurrentProfileByID(id string) bool
	SetTempProfileByName(name string)
	SetTempProfileByID(id string)
	ApplyProfileJSON(data []byte) bool
	SaveCustomProfile(data []byte) bool
	AddCustomProfile(data []byte) bool
	UpdateCustomProfile(data []byte) bool
	DeleteCustomProfile(id string) bool
	SetStateMap(stateKey settings.StateKey, profileID string) bool
	CurrentFanProfile() fancontrol.ActiveProfile
}

// Service implements the method-call half of the adaptor: one method
// per bus call, grouped the way the interface groups them (device,
// display, fan, profiles, state, GPU/CPU, charging, keyboard, water
// cooler, other). Every getter serves cached JSON or an atomic flag;
// every setter delegates straight to the coordinator or the worker
// that owns the underlying hardware.
type Service struct {
	logger logging.Logger

	deviceID device.ID
	caps     device.Capabilities

	coordinator Coordinator
	defaults    *profile.DefaultTable
	settings    *settings.Settings
	busdata     *busdata.Store

	fan             *fancontrol.Worker
	cpu             *cpupolicy.Controller
	backlight       *display.BacklightController
	profileSettings *profilesettings.Worker
	keyboard        *keyboard.Controller
	cooler          *watercooler.Worker
	fnlock          *fnlock.Controller
	tdp             profilesettings.TDPProvider
	webcam          hardwaremonitor.WebcamProvider
	hwmon           *hardwaremonitor.Worker
	namedPresets    map[string]fancontrol.Tables

	runner procexec.Runner
	isX11  bool
}

// ServiceOptions bundles Service's collaborators.
type ServiceOptions struct {
	Logger logging.Logger

	DeviceID       device.ID
	Capabilities   device.Capabilities
	Coordinator    Coordinator
	Defaults       *profile.DefaultTable
	Settings       *settings.Settings
	BusData        *busdata.Store
	Fan            *fancontrol.Worker
	CPU            *cpupolicy.Controller
	Backlight      *display.BacklightController
	ProfileSetting *profilesettings.Worker
	Keyboard       *keyboard.Controller
	Cooler         *watercooler.Worker
	FnLock         *fnlock.Controller
	TDP            profilesettings.TDPProvider
	Webcam         hardwaremonitor.WebcamProvider
	HardwareMonitor *hardwaremonitor.Worker
	NamedPresets   map[string]fancontrol.Tables
	Runner         procexec.Runner
	IsX11          bool
}

// NewService builds a Service ready to register against a router.
func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Service{
		logger:          opts.Logger,
		deviceID:        opts.DeviceID,
		caps:            opts.Capabilities,
		coordinator:     opts.Coordinator,
		defaults:        opts.Defaults,
		settings:        opts.Settings,
		busdata:         opts.BusData,
		fan:             opts.Fan,
		cpu:             opts.CPU,
		backlight:       opts.Backlight,
		profileSettings: opts.ProfileSetting,
		keyboard:        opts.Keyboard,
		cooler:          opts.Cooler,
		fnlock:          opts.FnLock,
		tdp:             opts.TDP,
		webcam:          opts.Webcam,
		hwmon:           opts.HardwareMonitor,
		namedPresets:    opts.NamedPresets,
		runner:          opts.Runner,
		isX11:           opts.IsX11,
	}
}

// --- Device ---

// GetDeviceName returns the identified device model enum value.
func (s *Service) GetDeviceName() string { return string(s.deviceID) }

// UccdVersion returns the daemon's reported version string.
func (s *Service) UccdVersion() string { return Version }

// TuxedoWmiAvailable reports whether the vendor WMI platform-profile
// interface was detected.
func (s *Service) TuxedoWmiAvailable() bool {
	return s.profileSettings != nil && len(s.profileSettings.PlatformProfileChoices()) > 0
}

// FanHwmonAvailable reports whether the fan worker has at least one
// sampled fan.
func (s *Service) FanHwmonAvailable() bool {
	return s.fan != nil && len(s.fan.Samples()) > 0
}

// --- Display ---

// GetIsX11 reports whether the session is X11 (vs. Wayland), set at
// startup from XDG_SESSION_TYPE.
func (s *Service) GetIsX11() bool { return s.isX11 }

// GetDisplayBrightness returns the current backlight brightness percent.
func (s *Service) GetDisplayBrightness() int32 {
	if s.backlight == nil {
		return 0
	}
	return s.backlight.BrightnessPercent()
}

// SetDisplayBrightness sets the backlight brightness percent.
func (s *Service) SetDisplayBrightness(percent int32) bool {
	if s.backlight == nil {
		return false
	}
	return s.backlight.SetBrightnessPercent(percent)
}

// SetDisplayRefreshRate applies an xrandr refresh-rate change; display is
// the xrandr output name (e.g. "eDP-1").
func (s *Service) SetDisplayRefreshRate(ctx context.Context, outputName string, rate int) bool {
	if s.runner == nil {
		return false
	}
	return display.SetRefreshRate(ctx, s.runner, outputName, rate)
}

// --- Fan ---

// GetFansMinSpeed returns the floor fan percentage the active profile
// enforces.
func (s *Service) GetFansMinSpeed() int32 {
	return s.coordinator.CurrentFanProfile().MinSpeed
}

// GetFansOffAvailable reports whether the active profile allows fans to
// idle at 0%.
func (s *Service) GetFansOffAvailable() bool {
	return s.coordinator.CurrentFanProfile().MinSpeed == 0
}

// GetFanStatusJSON returns the fan worker's last sampled status blob.
func (s *Service) GetFanStatusJSON() string {
	if s.busdata == nil {
		return "{}"
	}
	return s.busdata.Blob(busdata.BlobFanStatus)
}

type fanSeriesPoint struct {
	TS   int64   `json:"ts"`
	Data float64 `json:"data"`
}

type fanDataReading struct {
	Speed fanSeriesPoint `json:"speed"`
	Temp  fanSeriesPoint `json:"temp"`
}

func (s *Service) fanData(index fancontrol.FanIndex) fanDataReading {
	if s.fan == nil {
		return fanDataReading{}
	}
	sample, ok := s.fan.Samples()[index]
	if !ok {
		return fanDataReading{}
	}
	now := time.Now().Unix()
	return fanDataReading{
		Speed: fanSeriesPoint{TS: now, Data: float64(sample.Percent)},
		Temp:  fanSeriesPoint{TS: now, Data: sample.TempC},
	}
}

// GetFanDataCPU returns the CPU fan's last speed/temperature sample.
func (s *Service) GetFanDataCPU() fanDataReading { return s.fanData(fancontrol.CPUFanIndex) }

// GetFanDataGPU1 / GetFanDataGPU2 return the first and second GPU fan's
// last sample; models with a single GPU fan leave GetFanDataGPU2 empty.
func (s *Service) GetFanDataGPU1() fanDataReading { return s.fanData(fancontrol.FanIndex(1)) }
func (s *Service) GetFanDataGPU2() fanDataReading { return s.fanData(fancontrol.FanIndex(2)) }

// SetFanProfileCPU / SetFanProfileDGPU install a temporary single-table
// override for just the CPU or GPU curve, leaving the other channel on
// the active profile's table.
func (s *Service) SetFanProfileCPU(data []byte) bool  { return s.setSingleFanTable(data, true) }
func (s *Service) SetFanProfileDGPU(data []byte) bool { return s.setSingleFanTable(data, false) }

func (s *Service) setSingleFanTable(data []byte, cpu bool) bool {
	if s.fan == nil {
		return false
	}
	table := &fancurve.Table{}
	if err := json.Unmarshal(data, table); err != nil {
		return false
	}
	active := s.coordinator.CurrentFanProfile()
	if cpu {
		s.fan.ApplyFanProfiles(table, active.Tables.GPU, active.Tables.WaterCoolerFan, active.Tables.Pump)
	} else {
		s.fan.ApplyFanProfiles(active.Tables.CPU, table, active.Tables.WaterCoolerFan, active.Tables.Pump)
	}
	return true
}

// GetFanProfile returns a named fan-curve preset (the GUI's saved custom
// curves, distinct from the power profile's own embedded tables).
func (s *Service) GetFanProfile(name string) (string, error) {
	tables, ok := s.namedPresets[name]
	if !ok {
		return "{}", nil
	}
	data, err := json.Marshal(tables)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetFanProfile stores a named fan-curve preset.
func (s *Service) SetFanProfile(name string, data []byte) bool {
	if s.namedPresets == nil {
		return false
	}
	var tables fancontrol.Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return false
	}
	s.namedPresets[name] = tables
	return true
}

// GetFanProfileNames lists the saved named fan-curve presets.
func (s *Service) GetFanProfileNames() []string {
	names := make([]string, 0, len(s.namedPresets))
	for name := range s.namedPresets {
		names = append(names, name)
	}
	return names
}

// ApplyFanProfiles installs a temporary curve override from a
// {"cpu":[...], "gpu":[...], "waterCoolerFan":[...], "pump":[...]} JSON
// document, overriding the active profile's tables until reverted.
func (s *Service) ApplyFanProfiles(data []byte) bool {
	if s.fan == nil {
		return false
	}
	var req struct {
		CPU            *fancurve.Table `json:"cpu"`
		GPU            *fancurve.Table `json:"gpu"`
		WaterCoolerFan *fancurve.Table `json:"waterCoolerFan"`
		Pump           *fancurve.Table `json:"pump"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return false
	}
	s.fan.ApplyFanProfiles(req.CPU, req.GPU, req.WaterCoolerFan, req.Pump)
	return true
}

// RevertFanProfiles clears any temporary curve override.
func (s *Service) RevertFanProfiles() bool {
	if s.fan == nil {
		return false
	}
	s.fan.RevertFanProfiles()
	return true
}

// --- CPU frequency ---

// GetAvailableGovernors lists the scaling governors this kernel exposes.
func (s *Service) GetAvailableGovernors() []string {
	if s.cpu == nil {
		return nil
	}
	return s.cpu.AvailableGovernors()
}

// cpuFrequencyLimits is the {min,max} wire shape for GetCpuFrequencyLimitsJSON.
type cpuFrequencyLimits struct {
	MinKHz int32 `json:"min"`
	MaxKHz int32 `json:"max"`
}

// GetCpuFrequencyLimitsJSON returns the active profile's scaling min/max
// frequency bounds, read back from the currently applied CPU policy.
func (s *Service) GetCpuFrequencyLimitsJSON() (string, error) {
	p := s.lookupProfile(s.coordinator.ActiveProfileID())
	limits := cpuFrequencyLimits{}
	if p != nil {
		if p.CPU.ScalingMinKHz != nil {
			limits.MinKHz = *p.CPU.ScalingMinKHz
		}
		if p.CPU.ScalingMaxKHz != nil {
			limits.MaxKHz = *p.CPU.ScalingMaxKHz
		}
	}
	data, err := json.Marshal(limits)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- Profiles ---

// GetActiveProfileJSON returns the currently applied profile as JSON.
func (s *Service) GetActiveProfileJSON() (string, error) {
	p := s.lookupProfile(s.coordinator.ActiveProfileID())
	if p == nil {
		return "{}", nil
	}
	return marshalProfile(p)
}

// GetDefaultProfilesJSON returns every built-in profile as a JSON array.
func (s *Service) GetDefaultProfilesJSON() (string, error) {
	if s.defaults == nil {
		return "[]", nil
	}
	return marshalProfiles(s.defaults.All())
}

// GetCustomProfilesJSON returns every user-saved profile as a JSON array.
func (s *Service) GetCustomProfilesJSON() (string, error) {
	var all []*profile.Profile
	if s.settings != nil {
		for _, raw := range s.settings.Profiles {
			if p, err := profile.ParseJSON(raw); err == nil {
				all = append(all, p)
			}
		}
	}
	return marshalProfiles(all)
}

// GetProfilesJSON returns the union of default and custom profiles.
func (s *Service) GetProfilesJSON() (string, error) {
	var all []*profile.Profile
	if s.defaults != nil {
		all = append(all, s.defaults.All()...)
	}
	if s.settings != nil {
		for _, raw := range s.settings.Profiles {
			if p, err := profile.ParseJSON(raw); err == nil {
				all = append(all, p)
			}
		}
	}
	return marshalProfiles(all)
}

// GetDefaultValuesProfileJSON returns the first default profile, used by
// the GUI to seed a new custom profile's field defaults.
func (s *Service) GetDefaultValuesProfileJSON() (string, error) {
	if s.defaults == nil {
		return "{}", nil
	}
	first := s.defaults.First()
	if first == nil {
		return "{}", nil
	}
	return marshalProfile(first)
}

func (s *Service) lookupProfile(id string) *profile.Profile {
	if s.defaults != nil {
		if p, ok := s.defaults.Get(id); ok {
			return p
		}
	}
	if s.settings != nil {
		if raw, ok := s.settings.Profiles[id]; ok {
			if p, err := profile.ParseJSON(raw); err == nil {
				return p
			}
		}
	}
	return nil
}

// SetActiveProfile switches the active profile by id, without touching
// the state map.
func (s *Service) SetActiveProfile(id string) bool { return s.coordinator.SetCurrentProfileByID(id) }

// ApplyProfile applies an ad hoc profile document without persisting it.
func (s *Service) ApplyProfile(data []byte) bool { return s.coordinator.ApplyProfileJSON(data) }

// SaveCustomProfile, AddCustomProfile, UpdateCustomProfile all apply the
// coordinator's id/name collision rules identically; kept as distinct
// methods because the bus surface exposes all three names.
func (s *Service) SaveCustomProfile(data []byte) bool { return s.coordinator.SaveCustomProfile(data) }
func (s *Service) AddCustomProfile(data []byte) bool  { return s.coordinator.AddCustomProfile(data) }
func (s *Service) UpdateCustomProfile(data []byte) bool {
	return s.coordinator.UpdateCustomProfile(data)
}

// DeleteCustomProfile removes a custom profile by id.
func (s *Service) DeleteCustomProfile(id string) bool { return s.coordinator.DeleteCustomProfile(id) }

// SetTempProfile queues a one-shot profile switch by name.
func (s *Service) SetTempProfile(name string) bool {
	s.coordinator.SetTempProfileByName(name)
	return true
}

// SetTempProfileById queues a one-shot profile switch by id.
func (s *Service) SetTempProfileById(id string) bool {
	s.coordinator.SetTempProfileByID(id)
	return true
}

// --- State ---

// GetPowerState returns the current state-map key.
func (s *Service) GetPowerState() string { return s.coordinator.PowerState().StateKey() }

// SetStateMap assigns profileID to stateKey.
func (s *Service) SetStateMap(stateKey string, profileID string) bool {
	return s.coordinator.SetStateMap(settings.StateKey(stateKey), profileID)
}

// --- GPU / CPU telemetry ---

// GetDGpuInfoValuesJSON returns the cached dGPU sensor snapshot.
func (s *Service) GetDGpuInfoValuesJSON() string { return s.sensorBlob(busdata.BlobGPUInfo) }

// GetIGpuInfoValuesJSON returns the cached GPU sensor snapshot; the
// sensor worker folds the integrated-GPU fallback reading into the same
// snapshot it publishes for the dGPU, so this serves the same blob.
func (s *Service) GetIGpuInfoValuesJSON() string { return s.sensorBlob(busdata.BlobGPUInfo) }

// GetCpuPowerValuesJSON returns the cached CPU sensor snapshot.
func (s *Service) GetCpuPowerValuesJSON() string { return s.sensorBlob(busdata.BlobCPUInfo) }

// sensorBlob restarts the sensor-collection timeout, as every GPU/CPU
// getter read does, and returns the cached blob under key.
func (s *Service) sensorBlob(key string) string {
	if s.busdata != nil {
		s.busdata.ResetDataCollectionTimeout()
	}
	return s.blobOr(key)
}

// SetDGpuD0Metrics gates whether the sensor worker queries nvidia-smi at
// all, so a GPU parked in a runtime-suspended PCIe state isn't woken
// just to answer a poll.
func (s *Service) SetDGpuD0Metrics(enabled bool) {
	if s.hwmon != nil {
		s.hwmon.SetD0MetricsEnabled(enabled)
	}
}

// GetSensorDataCollectionStatus reports whether the 10 s sensor-poll
// auto-disable window is currently open.
func (s *Service) GetSensorDataCollectionStatus() bool {
	return s.busdata != nil && s.busdata.SensorDataCollectionEnabled()
}

// SetSensorDataCollectionStatus resets the auto-disable window, keeping
// sensor polling alive for another 10 s, the same way any client RPC
// call into a sensor getter would.
func (s *Service) SetSensorDataCollectionStatus(enabled bool) {
	if s.busdata != nil && enabled {
		s.busdata.ResetDataCollectionTimeout()
	}
}

func (s *Service) blobOr(key string) string {
	if s.busdata == nil {
		return "{}"
	}
	if v := s.busdata.Blob(key); v != "" {
		return v
	}
	return "{}"
}

// --- ODM / TDP / NVIDIA ---

// ODMProfilesAvailable lists the platform-profile names this model
// supports.
func (s *Service) ODMProfilesAvailable() []string {
	if s.profileSettings == nil {
		return nil
	}
	return s.profileSettings.PlatformProfileChoices()
}

// SetODMProfile applies a platform-profile (ODM) name outside of a full
// profile switch, e.g. the GUI's quick performance-mode picker.
func (s *Service) SetODMProfile(name string) bool {
	if s.profileSettings == nil {
		return false
	}
	return s.profileSettings.ApplyODMProfile(name)
}

// ODMPowerLimitsJSON returns the ODM power-limit sliders' current
// min/max/current/descriptor and stores the snapshot in bus-data under
// BlobTDPInfo. Every call queries the provider afresh; the stored blob
// is not read back here.
func (s *Service) ODMPowerLimitsJSON() (string, error) {
	if s.profileSettings == nil || s.tdp == nil {
		return "[]", nil
	}
	info := s.profileSettings.GetTDPInfo(s.tdp)
	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	if s.busdata != nil {
		s.busdata.SetBlob(busdata.BlobTDPInfo, string(data))
	}
	return string(data), nil
}

// SetTDPValues writes new current values to each ODM power-limit slider.
func (s *Service) SetTDPValues(values []int32) bool {
	if s.profileSettings == nil || s.tdp == nil {
		return false
	}
	return s.profileSettings.SetTDPValues(s.tdp, values)
}

// GetNVIDIAPowerCTRLDefaultPowerLimit / GetNVIDIAPowerCTRLMaxPowerLimit
// read the dGPU's cTGP bounds from the cached power-limit watts pair.
func (s *Service) GetNVIDIAPowerCTRLDefaultPowerLimit() int32 {
	if s.busdata == nil {
		return 0
	}
	current, _ := s.busdata.PowerLimitWatts()
	return current
}
func (s *Service) GetNVIDIAPowerCTRLMaxPowerLimit() int32 {
	if s.busdata == nil {
		return 0
	}
	_, maxWatts := s.busdata.PowerLimitWatts()
	return maxWatts
}

// GetNVIDIAPowerCTRLAvailable reports whether the dGPU's power-limit
// control interface was detected.
func (s *Service) GetNVIDIAPowerCTRLAvailable() bool {
	return s.busdata != nil && s.busdata.NVIDIAPowerCTRLAvailable()
}

// GetCTGPAdjustmentSupported reports whether this dGPU supports the
// cTGP dynamic-boost offset.
func (s *Service) GetCTGPAdjustmentSupported() bool {
	return s.busdata != nil && s.busdata.CTGPAdjustmentSupported()
}

// ConsumeModeReapplyPending clears and returns the mode-reapply-pending
// flag, so the GUI's one-time "apply now" prompt fires at most once per
// edit.
func (s *Service) ConsumeModeReapplyPending() bool {
	if s.busdata == nil {
		return false
	}
	pending := s.busdata.ModeReapplyPending()
	s.busdata.SetModeReapplyPending(false)
	return pending
}

// --- Charging ---

// GetChargingProfile returns the active charging profile descriptor.
func (s *Service) GetChargingProfile() string {
	if s.profileSettings == nil {
		return ""
	}
	return s.profileSettings.CurrentChargingProfile()
}

// SetChargingProfile applies a charging profile descriptor.
func (s *Service) SetChargingProfile(descriptor string) bool {
	if s.profileSettings == nil {
		return false
	}
	return s.profileSettings.ApplyChargingProfile(descriptor)
}

// GetChargingPriority returns the active charging priority descriptor.
func (s *Service) GetChargingPriority() string {
	if s.profileSettings == nil {
		return ""
	}
	return s.profileSettings.CurrentChargingPriority()
}

// SetChargingPriority applies a charging priority descriptor.
func (s *Service) SetChargingPriority(descriptor string) bool {
	if s.profileSettings == nil {
		return false
	}
	return s.profileSettings.ApplyChargingPriority(descriptor)
}

// GetChargeStartThreshold / GetChargeEndThreshold read the battery's
// charge-control thresholds.
func (s *Service) GetChargeStartThreshold() int {
	if s.profileSettings == nil {
		return chargecontrol.ChargeThresholdUnavailable
	}
	return s.profileSettings.ChargeStartThreshold()
}
func (s *Service) GetChargeEndThreshold() int {
	if s.profileSettings == nil {
		return chargecontrol.ChargeThresholdUnavailable
	}
	return s.profileSettings.ChargeEndThreshold()
}

// SetChargeStartThreshold / SetChargeEndThreshold write the battery's
// charge-control thresholds.
func (s *Service) SetChargeStartThreshold(v int) bool {
	if s.profileSettings == nil {
		return false
	}
	return s.profileSettings.SetChargeStartThreshold(v)
}
func (s *Service) SetChargeEndThreshold(v int) bool {
	if s.profileSettings == nil {
		return false
	}
	return s.profileSettings.SetChargeEndThreshold(v)
}

// GetChargeType / SetChargeType read/write the charge-control type
// (e.g. standard vs. Adaptive Charging).
func (s *Service) GetChargeType() string {
	if s.profileSettings == nil {
		return ""
	}
	return string(s.profileSettings.ChargeType())
}
func (s *Service) SetChargeType(t string) bool {
	if s.profileSettings == nil {
		return false
	}
	return s.profileSettings.SetChargeType(t)
}

// GetChargeStartAvailableThresholds / GetChargeEndAvailableThresholds
// list the thresholds the battery's sysfs node accepts.
func (s *Service) GetChargeStartAvailableThresholds() []int32 {
	if s.profileSettings == nil {
		return nil
	}
	return s.profileSettings.ChargeStartAvailableThresholds()
}
func (s *Service) GetChargeEndAvailableThresholds() []int32 {
	if s.profileSettings == nil {
		return nil
	}
	return s.profileSettings.ChargeEndAvailableThresholds()
}

// --- Keyboard ---

// GetKeyboardBacklightCapabilitiesJSON describes this model's backlight
// shape (zone count, max brightness).
func (s *Service) GetKeyboardBacklightCapabilitiesJSON() (json.RawMessage, error) {
	if s.keyboard == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.keyboard.CapabilitiesJSON()
}

// GetKeyboardBacklightStatesJSON returns the live backlight state.
func (s *Service) GetKeyboardBacklightStatesJSON() (json.RawMessage, error) {
	if s.keyboard == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.keyboard.StatesJSON()
}

// SetKeyboardBacklightStatesJSON applies a backlight state document.
func (s *Service) SetKeyboardBacklightStatesJSON(data []byte) bool {
	if s.keyboard == nil {
		return false
	}
	return s.keyboard.ApplyBacklightStates(data)
}

// --- Water cooler ---

// GetWaterCoolerSupported reports whether this device model has a
// water-cooler BLE peripheral at all.
func (s *Service) GetWaterCoolerSupported() bool {
	return s.busdata != nil && s.busdata.WaterCoolerSupported()
}

// GetWaterCoolerAvailable reports whether BLE scanning for the cooler is
// currently switched on.
func (s *Service) GetWaterCoolerAvailable() bool {
	return s.busdata != nil && s.busdata.WaterCoolerScanningEnabled()
}

// GetWaterCoolerConnected reports the live GATT connection state.
func (s *Service) GetWaterCoolerConnected() bool {
	return s.cooler != nil && s.cooler.Connected()
}

// GetWaterCoolerFanSpeed / GetWaterCoolerPumpLevel return the last
// setpoints pushed to the cooler.
func (s *Service) GetWaterCoolerFanSpeed() int32 {
	if s.cooler == nil {
		return 0
	}
	fan, _ := s.cooler.LastSetpoints()
	return fan
}
func (s *Service) GetWaterCoolerPumpLevel() int32 {
	if s.cooler == nil {
		return 0
	}
	_, pump := s.cooler.LastSetpoints()
	return pump
}

// EnableWaterCooler toggles BLE scanning for the cooler peripheral.
func (s *Service) EnableWaterCooler(enabled bool) bool {
	if s.busdata == nil {
		return false
	}
	s.busdata.SetWaterCoolerScanningEnabled(enabled)
	return true
}

// SetWaterCoolerFanSpeed / SetWaterCoolerPumpVoltage push an explicit
// manual setpoint, bypassing the fan worker's automatic control.
func (s *Service) SetWaterCoolerFanSpeed(ctx context.Context, percent int32) bool {
	if s.cooler == nil {
		return false
	}
	return s.cooler.SetFanSpeed(ctx, percent) == nil
}
func (s *Service) SetWaterCoolerPumpVoltage(ctx context.Context, voltage int32) bool {
	if s.cooler == nil {
		return false
	}
	return s.cooler.SetPumpVoltage(ctx, voltage) == nil
}

// SetWaterCoolerLEDColor pushes an explicit LED color/mode.
func (s *Service) SetWaterCoolerLEDColor(ctx context.Context, r, g, b byte, mode int) bool {
	if s.cooler == nil {
		return false
	}
	return s.cooler.SetLEDColor(ctx, r, g, b, watercooler.LEDMode(mode)) == nil
}

// TurnOffWaterCoolerLED / Fan / Pump zero out one cooler channel.
func (s *Service) TurnOffWaterCoolerLED(ctx context.Context) bool {
	return s.cooler != nil && s.cooler.TurnOffLED(ctx) == nil
}
func (s *Service) TurnOffWaterCoolerFan(ctx context.Context) bool {
	return s.cooler != nil && s.cooler.TurnOffFan(ctx) == nil
}
func (s *Service) TurnOffWaterCoolerPump(ctx context.Context) bool {
	return s.cooler != nil && s.cooler.TurnOffPump(ctx) == nil
}

// IsWaterCoolerAutoControlEnabled reports whether the active profile
// drives the cooler from the fan curves rather than a manual setpoint.
func (s *Service) IsWaterCoolerAutoControlEnabled() bool {
	return s.coordinator.CurrentFanProfile().AutoControlWC
}

// --- Other ---

// GetFnLockSupported / GetFnLockStatus / SetFnLockStatus expose the
// Fn-lock toggle.
func (s *Service) GetFnLockSupported() bool { return s.fnlock != nil && s.fnlock.Supported() }
func (s *Service) GetFnLockStatus() bool    { return s.fnlock != nil && s.fnlock.Status() }
func (s *Service) SetFnLockStatus(enabled bool) bool {
	return s.fnlock != nil && s.fnlock.SetStatus(enabled)
}

// GetForceYUV420OutputSwitchAvailable reports whether the active
// profile's display card is on the YCbCr-420 override list, i.e. the
// GUI should offer the forced-4:2:0 workaround toggle for it.
func (s *Service) GetForceYUV420OutputSwitchAvailable() bool {
	return s.profileSettings != nil && s.profileSettings.YCbCr420Available()
}

// GetWebcamInfoJSON returns the cached webcam-switch snapshot.
func (s *Service) GetWebcamInfoJSON() string { return s.blobOr(busdata.BlobWebcamInfo) }

// GetWebcamAvailable / GetWebcamEnabled read the vendor webcam kill
// switch directly, for callers that want the live value rather than the
// cached sensor-poll snapshot.
func (s *Service) GetWebcamAvailable() bool { return s.webcam != nil && s.webcam.Available() }
func (s *Service) GetWebcamEnabled() bool   { return s.webcam != nil && s.webcam.Enabled() }

func marshalProfile(p *profile.Profile) (string, error) {
	data, err := p.ToJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalProfiles(all []*profile.Profile) (string, error) {
	data, err := json.Marshal(all)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
