// Package coordinator is the 1 Hz orchestrator: it owns the active
// profile, the power-state/water-cooler debounce, and the profile CRUD
// rules, and drives the other workers' reapply hooks on every tick. It
// runs on its owner's goroutine, not its own — the caller ticks it, the
// same way the original's coordinator lived on the main thread with the
// GLib/Qt event loop driving it.
package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/cpupolicy"
	"github.com/tuxedocomputers/tccd/internal/fancontrol"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/powerstate"
	"github.com/tuxedocomputers/tccd/internal/profile"
	"github.com/tuxedocomputers/tccd/internal/profilesettings"
	"github.com/tuxedocomputers/tccd/internal/settings"
	"github.com/tuxedocomputers/tccd/internal/watercooler"
)

// cTGPValidationInterval is every how many ticks validateNVIDIACTGPOffset
// runs, per spec section 4.11's "every 5th tick" rule at a 1 Hz cadence.
const cTGPValidationInterval = 5

// Default water-cooler debounce windows, used whenever Options leaves
// either duration unset (e.g. tests constructing a bare Coordinator).
const (
	defaultWCConnectDebounce    = 3 * time.Second
	defaultWCDisconnectDebounce = 10 * time.Second
)

// Signaler is the subset of busadaptor.SignalBroker the coordinator
// pushes events through.
type Signaler interface {
	PublishProfileChanged(profileID string)
	PublishPowerStateChanged(state string)
	PublishWaterCoolerStatusChanged(connected bool)
	PublishModeReapplyPendingChanged(pending bool)
}

type noOpSignaler struct{}

func (noOpSignaler) PublishProfileChanged(string)          {}
func (noOpSignaler) PublishPowerStateChanged(string)        {}
func (noOpSignaler) PublishWaterCoolerStatusChanged(bool)   {}
func (noOpSignaler) PublishModeReapplyPendingChanged(bool) {}

// KeyboardSink receives the active profile's keyboard backlight blob.
type KeyboardSink interface {
	ApplyBacklightStates(raw json.RawMessage) bool
}

// Coordinator ties together the shared stores, the persisted
// settings/profile state, and the workers' reapply hooks.
type Coordinator struct {
	mu sync.Mutex

	stateDir string
	settings *settings.Settings
	defaults *profile.DefaultTable
	busdata  *busdata.Store
	signals  Signaler
	logger   logging.Logger

	cpu             *cpupolicy.Controller
	fan             *fancontrol.Worker
	cooler          *watercooler.Worker
	profileSettings *profilesettings.Worker
	keyboard        KeyboardSink

	activeProfileID string
	powerState      powerstate.State

	tempProfileQueue []tempProfileRequest

	tick int64

	waterCoolerConnected atomic.Bool

	wcConnectDebounce    time.Duration
	wcDisconnectDebounce time.Duration
	wcAccepted           bool
	wcPendingTarget      bool
	wcPendingSince       time.Time
	wcPendingValid       bool

	activeFanProfile fancontrol.ActiveProfile
}

type tempProfileRequest struct {
	byID bool
	name string
	id   string
}

// Options bundles the Coordinator's collaborators; any may be nil, in
// which case the corresponding reapply step becomes a no-op (useful for
// tests that only exercise the CRUD rules or the state-transition logic).
type Options struct {
	StateDir        string
	Settings        *settings.Settings
	Defaults        *profile.DefaultTable
	BusData         *busdata.Store
	Signals         Signaler
	Logger          logging.Logger
	CPU             *cpupolicy.Controller
	Fan             *fancontrol.Worker
	Cooler          *watercooler.Worker
	ProfileSettings *profilesettings.Worker
	Keyboard        KeyboardSink

	// WCConnectDebounce/WCDisconnectDebounce bound how long the raw
	// water-cooler connection flag must be stable before updatePowerState
	// accepts the transition. Zero takes the package default.
	WCConnectDebounce    time.Duration
	WCDisconnectDebounce time.Duration
}

// New returns a Coordinator whose initial power state is resolved from a
// one-shot sysfs power-supply scan. New applies no profile; the active
// profile id stays empty until a profile is applied.
func New(opts Options) *Coordinator {
	if opts.Signals == nil {
		opts.Signals = noOpSignaler{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	connectDebounce := opts.WCConnectDebounce
	if connectDebounce <= 0 {
		connectDebounce = defaultWCConnectDebounce
	}
	disconnectDebounce := opts.WCDisconnectDebounce
	if disconnectDebounce <= 0 {
		disconnectDebounce = defaultWCDisconnectDebounce
	}
	c := &Coordinator{
		stateDir:             opts.StateDir,
		settings:             opts.Settings,
		defaults:             opts.Defaults,
		busdata:              opts.BusData,
		signals:              opts.Signals,
		logger:               opts.Logger,
		cpu:                  opts.CPU,
		fan:                  opts.Fan,
		cooler:               opts.Cooler,
		profileSettings:      opts.ProfileSettings,
		keyboard:             opts.Keyboard,
		wcConnectDebounce:    connectDebounce,
		wcDisconnectDebounce: disconnectDebounce,
	}
	c.powerState = powerstate.Determine(false)
	return c
}

// ActiveProfileID returns the currently applied profile's id.
func (c *Coordinator) ActiveProfileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeProfileID
}

// PowerState returns the last-resolved power state.
func (c *Coordinator) PowerState() powerstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powerState
}

// CurrentFanProfile returns the active profile's fan policy, for the
// caller driving fancontrol.Worker.Tick on its own ticker.
func (c *Coordinator) CurrentFanProfile() fancontrol.ActiveProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeFanProfile
}

// Tick runs one orchestrator pass, per spec section 4.11's six steps.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.tick++

	// Step 1: refresh vendor-WMI / NVIDIA availability is re-probed by
	// profilesettings at Start(); nothing to redo every tick here beyond
	// the cTGP drift check below.

	// Step 2: every 5th tick, validate the NVIDIA cTGP offset hasn't
	// drifted out from under the active profile.
	if c.tick%cTGPValidationInterval == 0 {
		c.validateCTGPOffset(ctx)
	}

	// Step 3: publish the mode-reapply signal on every tick while the
	// pending flag is set.
	if c.busdata != nil && c.busdata.ModeReapplyPending() {
		c.signals.PublishModeReapplyPendingChanged(true)
	}

	// Step 4: process at most one pending temp-profile request; a request
	// that changes the profile ends this pass, so a tick never applies
	// more than one profile change.
	if c.processTempProfileRequest() {
		return nil
	}

	// Step 5 + 6: power-state / water-cooler debounce.
	c.updatePowerState()

	return nil
}

func (c *Coordinator) validateCTGPOffset(ctx context.Context) {
	if c.profileSettings == nil {
		return
	}
	active := c.lookupActiveProfile()
	if active == nil || active.NVIDIAPowerCTRLProfile == nil {
		return
	}
	c.profileSettings.ValidateNVIDIACTGPOffset(ctx, active.NVIDIAPowerCTRLProfile.CTGPOffsetWatts)
}

// SetTempProfileByName queues a one-shot profile switch by name,
// processed on the next tick.
func (c *Coordinator) SetTempProfileByName(name string) {
	c.mu.Lock()
	c.tempProfileQueue = append(c.tempProfileQueue, tempProfileRequest{name: name})
	c.mu.Unlock()
}

// SetTempProfileByID queues a one-shot profile switch by id.
func (c *Coordinator) SetTempProfileByID(id string) {
	c.mu.Lock()
	c.tempProfileQueue = append(c.tempProfileQueue, tempProfileRequest{byID: true, id: id})
	c.mu.Unlock()
}

// processTempProfileRequest takes the oldest by-name request, or the
// oldest by-id request when none is by name, applies it, and reports
// whether a profile was applied.
func (c *Coordinator) processTempProfileRequest() bool {
	c.mu.Lock()
	if len(c.tempProfileQueue) == 0 {
		c.mu.Unlock()
		return false
	}
	next := 0
	for i, r := range c.tempProfileQueue {
		if !r.byID {
			next = i
			break
		}
	}
	req := c.tempProfileQueue[next]
	c.tempProfileQueue = append(c.tempProfileQueue[:next], c.tempProfileQueue[next+1:]...)
	c.mu.Unlock()

	if req.byID {
		return c.SetCurrentProfileByID(req.id)
	}
	if p := c.findProfileByName(req.name); p != nil {
		return c.SetCurrentProfileByID(p.ID)
	}
	return false
}

func (c *Coordinator) findProfileByName(name string) *profile.Profile {
	for _, p := range c.allProfiles() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (c *Coordinator) allProfiles() []*profile.Profile {
	var all []*profile.Profile
	if c.defaults != nil {
		all = append(all, c.defaults.All()...)
	}
	if c.settings != nil {
		for _, raw := range c.settings.Profiles {
			if p, err := profile.ParseJSON(raw); err == nil {
				all = append(all, p)
			}
		}
	}
	return all
}

func (c *Coordinator) lookupProfile(id string) *profile.Profile {
	if c.settings != nil {
		if raw, ok := c.settings.Profiles[id]; ok {
			if p, err := profile.ParseJSON(raw); err == nil {
				return p
			}
		}
	}
	if c.defaults != nil {
		if p, ok := c.defaults.Get(id); ok {
			return p
		}
	}
	return nil
}

func (c *Coordinator) lookupActiveProfile() *profile.Profile {
	c.mu.Lock()
	id := c.activeProfileID
	c.mu.Unlock()
	if id == "" {
		return nil
	}
	return c.lookupProfile(id)
}

// updatePowerState resolves the current AC/battery/water-cooler power
// state, applying the water-cooler-connected-supersedes-everything rule,
// and reapplies the current state's profile on any transition. The raw
// connection flag is debounced first, per spec section 4.10, so a pulse
// shorter than the relevant window never reaches powerstate.Determine.
func (c *Coordinator) updatePowerState() {
	raw := c.waterCoolerConnected.Load()
	if c.cooler != nil {
		raw = c.cooler.Connected()
	}

	connected := c.debounceWaterCooler(raw)

	newState := powerstate.Determine(connected)

	c.mu.Lock()
	changed := newState != c.powerState
	if changed {
		c.powerState = newState
	}
	c.mu.Unlock()

	if changed {
		c.signals.PublishPowerStateChanged(newState.StateKey())
		c.applyProfileForCurrentState()
	}
}

// debounceWaterCooler only lets raw drive the accepted connection state
// once it has been stable for wcConnectDebounce (raw == true) or
// wcDisconnectDebounce (raw == false); any flip of raw before the window
// elapses restarts the pending timer. Called only from updatePowerState,
// itself only ever invoked from the coordinator's own serialized Tick,
// so the pending fields need no lock of their own.
func (c *Coordinator) debounceWaterCooler(raw bool) bool {
	if raw == c.wcAccepted {
		c.wcPendingValid = false
		return c.wcAccepted
	}
	if !c.wcPendingValid || c.wcPendingTarget != raw {
		c.wcPendingTarget = raw
		c.wcPendingSince = time.Now()
		c.wcPendingValid = true
		return c.wcAccepted
	}

	window := c.wcDisconnectDebounce
	if raw {
		window = c.wcConnectDebounce
	}
	if time.Since(c.wcPendingSince) >= window {
		c.wcAccepted = raw
		c.wcPendingValid = false
	}
	return c.wcAccepted
}

// NotifyWaterCoolerConnected lets the cooler worker report a
// connect/disconnect transition outside the coordinator's own tick, so
// the debounce in updatePowerState sees it on the very next tick rather
// than waiting for a sysfs-driven AC/battery flip to coincide.
func (c *Coordinator) NotifyWaterCoolerConnected(connected bool) {
	c.waterCoolerConnected.Store(connected)
	c.signals.PublishWaterCoolerStatusChanged(connected)
}

// applyProfileForCurrentState looks up the active state's mapped
// profile (settings override first, defaults second) and applies it.
func (c *Coordinator) applyProfileForCurrentState() {
	c.mu.Lock()
	stateKey := settings.StateKey(c.powerState.StateKey())
	var id string
	if c.settings != nil {
		id = c.settings.StateMap[stateKey]
	}
	c.mu.Unlock()

	if id == "" && c.defaults != nil {
		if first := c.defaults.First(); first != nil {
			id = first.ID
		}
	}
	if id == "" {
		return
	}

	p := c.lookupProfile(id)
	if p == nil {
		return
	}

	c.applyProfile(p)
}

// applyProfile pushes one profile's policy to every worker and marks it
// active, per spec section 4.11's applyProfileForCurrentState() body.
func (c *Coordinator) applyProfile(p *profile.Profile) {
	c.mu.Lock()
	c.activeProfileID = p.ID
	c.mu.Unlock()

	if c.cpu != nil {
		c.cpu.Apply(cpupolicy.Policy{
			Governor:      p.CPU.Governor,
			EPP:           p.CPU.EPP,
			NoTurbo:       p.CPU.NoTurbo,
			OnlineCores:   p.CPU.OnlineCores,
			ScalingMinKHz: p.CPU.ScalingMinKHz,
			ScalingMaxKHz: p.CPU.ScalingMaxKHz,
		})
	}

	fanProfile := fancontrol.ActiveProfile{
		FanControlEnabled: c.settings == nil || c.settings.FanControlEnabled,
		UseControl:        p.Fan.UseControl,
		OffsetFanspeed:    p.Fan.OffsetFanspeed,
		SameSpeed:         p.Fan.SameSpeed,
		AutoControlWC:     p.Fan.AutoControlWC,
		Tables: fancontrol.Tables{
			CPU:            p.Fan.TableCPU,
			GPU:            p.Fan.TableGPU,
			Pump:           p.Fan.TablePump,
			WaterCoolerFan: p.Fan.TableWaterCoolerFan,
		},
	}
	c.mu.Lock()
	c.activeFanProfile = fanProfile
	c.mu.Unlock()
	if c.fan != nil {
		c.fan.RevertFanProfiles()
	}

	if c.profileSettings != nil {
		if p.ODMProfile != nil {
			c.profileSettings.ApplyODMProfile(*p.ODMProfile)
		}
		if p.ChargingProfile != "" {
			c.profileSettings.ApplyChargingProfile(p.ChargingProfile)
		}
		if p.ChargingPriority != "" {
			c.profileSettings.ApplyChargingPriority(p.ChargingPriority)
		}
		if p.ChargeType != "" {
			c.profileSettings.SetChargeType(p.ChargeType)
		}
		if p.ChargeStartThreshold != profile.ChargeThresholdUnset {
			c.profileSettings.SetChargeStartThreshold(int(p.ChargeStartThreshold))
		}
		if p.ChargeEndThreshold != profile.ChargeThresholdUnset {
			c.profileSettings.SetChargeEndThreshold(int(p.ChargeEndThreshold))
		}
		if p.NVIDIAPowerCTRLProfile != nil {
			c.profileSettings.OnNVIDIAPowerProfileChanged(context.Background(), p.NVIDIAPowerCTRLProfile.CTGPOffsetWatts)
		}
	}

	if c.keyboard != nil && len(p.Keyboard.BacklightStates) > 0 {
		c.keyboard.ApplyBacklightStates(p.Keyboard.BacklightStates)
	}

	c.signals.PublishProfileChanged(p.ID)
}

// SetCurrentProfileByID applies profile id immediately as the active
// profile, without touching the state map.
func (c *Coordinator) SetCurrentProfileByID(id string) bool {
	p := c.lookupProfile(id)
	if p == nil {
		return false
	}
	c.applyProfile(p)
	return true
}

// SetStateMap assigns profile id to stateKey and, if that is the
// currently active state, reapplies immediately.
func (c *Coordinator) SetStateMap(stateKey settings.StateKey, profileID string) bool {
	if c.lookupProfile(profileID) == nil {
		return false
	}
	if c.settings == nil {
		return false
	}

	c.mu.Lock()
	c.settings.StateMap[stateKey] = profileID
	isActive := settings.StateKey(c.powerState.StateKey()) == stateKey
	c.mu.Unlock()

	c.persistSettings()

	if isActive {
		c.applyProfileForCurrentState()
	}
	return true
}

// ApplyProfileJSON parses and applies an ad hoc profile document without
// persisting it — the GUI's "preview" / temporary-apply path.
func (c *Coordinator) ApplyProfileJSON(data []byte) bool {
	p, err := profile.ParseJSON(data)
	if err != nil {
		return false
	}
	c.applyProfile(p)
	return true
}

// resolveMutationID applies the collision rules: rejected (read-only id,
// or a submitted profile whose name collides with a default), or an id
// to write under (the submitted id, unless an empty id was given, in
// which case a fresh UUID).
func (c *Coordinator) resolveMutationID(p *profile.Profile) (string, bool) {
	if c.defaults != nil {
		if c.defaults.Has(p.ID) {
			return "", false
		}
		for _, d := range c.defaults.All() {
			if d.Name == p.Name {
				return "", false
			}
		}
	}

	id := p.ID
	if id == "" {
		id = newProfileID()
	}
	return id, true
}

// purgeSameNameDifferentID removes any custom profile sharing p's name
// but a different id — the "GUI's ID wins" rule.
func (c *Coordinator) purgeSameNameDifferentID(name, keepID string) {
	if c.settings == nil {
		return
	}
	for id, raw := range c.settings.Profiles {
		if id == keepID {
			continue
		}
		existing, err := profile.ParseJSON(raw)
		if err != nil {
			continue
		}
		if existing.Name == name {
			delete(c.settings.Profiles, id)
		}
	}
}

// SaveCustomProfile applies the collision rules and writes p into
// settings.profiles, persisting atomically.
func (c *Coordinator) SaveCustomProfile(data []byte) bool {
	return c.mutateCustomProfile(data)
}

// AddCustomProfile is an alias for SaveCustomProfile: the coordinator
// applies the same id/name collision resolution regardless of which RPC
// method the GUI happened to call, per spec section 4.11.
func (c *Coordinator) AddCustomProfile(data []byte) bool {
	return c.mutateCustomProfile(data)
}

// UpdateCustomProfile is likewise a thin variant of the same rule set.
func (c *Coordinator) UpdateCustomProfile(data []byte) bool {
	return c.mutateCustomProfile(data)
}

func (c *Coordinator) mutateCustomProfile(data []byte) bool {
	p, err := profile.ParseJSON(data)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.resolveMutationID(p)
	if !ok {
		return false
	}
	p.ID = id

	c.purgeSameNameDifferentID(p.Name, id)

	raw, err := p.ToJSON()
	if err != nil {
		return false
	}
	if c.settings == nil {
		return false
	}
	c.settings.Profiles[id] = raw

	c.persistSettingsLocked()
	return true
}

// DeleteCustomProfile removes a custom profile. Default profiles cannot
// be deleted.
func (c *Coordinator) DeleteCustomProfile(id string) bool {
	if c.defaults != nil && c.defaults.Has(id) {
		return false
	}
	if c.settings == nil {
		return false
	}

	c.mu.Lock()
	_, existed := c.settings.Profiles[id]
	delete(c.settings.Profiles, id)
	c.mu.Unlock()

	if existed {
		c.persistSettings()
	}
	return existed
}

func (c *Coordinator) persistSettings() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistSettingsLocked()
}

func (c *Coordinator) persistSettingsLocked() {
	if c.settings == nil || c.stateDir == "" {
		return
	}
	if err := c.settings.Save(c.stateDir); err != nil {
		c.logger.Warn("failed to persist settings", "error", err)
	}
}

func newProfileID() string {
	return uuid.NewString()
}
