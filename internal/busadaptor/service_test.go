package busadaptor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/fancontrol"
	"github.com/tuxedocomputers/tccd/internal/fancurve"
	"github.com/tuxedocomputers/tccd/internal/powerstate"
	"github.com/tuxedocomputers/tccd/internal/profile"
	"github.com/tuxedocomputers/tccd/internal/settings"
)

type fakeCoordinator struct {
	activeProfileID     string
	powerState          powerstate.State
	setCurrentCalls     []string
	setCurrentResult    bool
	tempByName          []string
	tempByID            []string
	applyProfileJSON    []byte
	applyProfileResult  bool
	saveCustomCalls     [][]byte
	saveCustomResult    bool
	addCustomResult     bool
	updateCustomResult  bool
	deleteCustomCalls   []string
	deleteCustomResult  bool
	stateMapCalls       map[settings.StateKey]string
	stateMapResult      bool
	currentFanProfile   fancontrol.ActiveProfile
}

func (f *fakeCoordinator) ActiveProfileID() string        { return f.activeProfileID }
func (f *fakeCoordinator) PowerState() powerstate.State    { return f.powerState }
func (f *fakeCoordinator) SetCurrentProfileByID(id string) bool {
	f.setCurrentCalls = append(f.setCurrentCalls, id)
	return f.setCurrentResult
}
func (f *fakeCoordinator) SetTempProfileByName(name string) { f.tempByName = append(f.tempByName, name) }
func (f *fakeCoordinator) SetTempProfileByID(id string)      { f.tempByID = append(f.tempByID, id) }
func (f *fakeCoordinator) ApplyProfileJSON(data []byte) bool {
	f.applyProfileJSON = data
	return f.applyProfileResult
}
func (f *fakeCoordinator) SaveCustomProfile(data []byte) bool {
	f.saveCustomCalls = append(f.saveCustomCalls, data)
	return f.saveCustomResult
}
func (f *fakeCoordinator) AddCustomProfile(data []byte) bool    { return f.addCustomResult }
func (f *fakeCoordinator) UpdateCustomProfile(data []byte) bool { return f.updateCustomResult }
func (f *fakeCoordinator) DeleteCustomProfile(id string) bool {
	f.deleteCustomCalls = append(f.deleteCustomCalls, id)
	return f.deleteCustomResult
}
func (f *fakeCoordinator) SetStateMap(stateKey settings.StateKey, profileID string) bool {
	if f.stateMapCalls == nil {
		f.stateMapCalls = make(map[settings.StateKey]string)
	}
	f.stateMapCalls[stateKey] = profileID
	return f.stateMapResult
}
func (f *fakeCoordinator) CurrentFanProfile() fancontrol.ActiveProfile { return f.currentFanProfile }

func TestSetActiveProfileDelegatesToCoordinator(t *testing.T) {
	coord := &fakeCoordinator{setCurrentResult: true}
	svc := NewService(ServiceOptions{Coordinator: coord})

	assert.True(t, svc.SetActiveProfile("quiet"))
	assert.Equal(t, []string{"quiet"}, coord.setCurrentCalls)
}

func TestProfileCRUDDelegatesToCoordinator(t *testing.T) {
	coord := &fakeCoordinator{
		applyProfileResult: true,
		saveCustomResult:   true,
		addCustomResult:    true,
		updateCustomResult: true,
		deleteCustomResult: true,
	}
	svc := NewService(ServiceOptions{Coordinator: coord})

	assert.True(t, svc.ApplyProfile([]byte(`{"id":"x"}`)))
	assert.True(t, svc.SaveCustomProfile([]byte(`{"id":"x"}`)))
	assert.True(t, svc.AddCustomProfile([]byte(`{"id":"y"}`)))
	assert.True(t, svc.UpdateCustomProfile([]byte(`{"id":"y"}`)))
	assert.True(t, svc.DeleteCustomProfile("x"))
	assert.Equal(t, []string{"x"}, coord.deleteCustomCalls)
}

func TestSetTempProfileQueuesByNameAndID(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord})

	assert.True(t, svc.SetTempProfile("Performance"))
	assert.True(t, svc.SetTempProfileById("custom-1"))
	assert.Equal(t, []string{"Performance"}, coord.tempByName)
	assert.Equal(t, []string{"custom-1"}, coord.tempByID)
}

func TestGetPowerStateReadsCoordinator(t *testing.T) {
	coord := &fakeCoordinator{powerState: powerstate.Battery}
	svc := NewService(ServiceOptions{Coordinator: coord})
	assert.Equal(t, "power_bat", svc.GetPowerState())
}

func TestSetStateMapDelegatesWithTypedKey(t *testing.T) {
	coord := &fakeCoordinator{stateMapResult: true}
	svc := NewService(ServiceOptions{Coordinator: coord})

	assert.True(t, svc.SetStateMap("battery", "eco"))
	assert.Equal(t, "eco", coord.stateMapCalls[settings.StateKey("battery")])
}

func TestFanMinSpeedAndOffAvailableReadActiveFanProfile(t *testing.T) {
	coord := &fakeCoordinator{currentFanProfile: fancontrol.ActiveProfile{MinSpeed: 0}}
	svc := NewService(ServiceOptions{Coordinator: coord})

	assert.Equal(t, int32(0), svc.GetFansMinSpeed())
	assert.True(t, svc.GetFansOffAvailable())

	coord.currentFanProfile = fancontrol.ActiveProfile{MinSpeed: 20}
	assert.Equal(t, int32(20), svc.GetFansMinSpeed())
	assert.False(t, svc.GetFansOffAvailable())
}

func TestIsWaterCoolerAutoControlEnabledReadsActiveFanProfile(t *testing.T) {
	coord := &fakeCoordinator{currentFanProfile: fancontrol.ActiveProfile{AutoControlWC: true}}
	svc := NewService(ServiceOptions{Coordinator: coord})
	assert.True(t, svc.IsWaterCoolerAutoControlEnabled())
}

func TestNilCollaboratorsReturnZeroValuesNotPanics(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord})

	assert.Equal(t, int32(0), svc.GetDisplayBrightness())
	assert.False(t, svc.SetDisplayBrightness(50))
	assert.False(t, svc.SetDisplayRefreshRate(context.Background(), "eDP-1", 60))
	assert.False(t, svc.FanHwmonAvailable())
	assert.Equal(t, "{}", svc.GetFanStatusJSON())
	assert.Nil(t, svc.GetAvailableGovernors())
	assert.False(t, svc.GetWaterCoolerConnected())
	assert.Equal(t, int32(0), svc.GetWaterCoolerFanSpeed())
	assert.False(t, svc.SetWaterCoolerFanSpeed(context.Background(), 50))
	assert.False(t, svc.GetFnLockSupported())
	assert.False(t, svc.GetWebcamAvailable())
	assert.False(t, svc.GetForceYUV420OutputSwitchAvailable())
	assert.False(t, svc.TuxedoWmiAvailable())
}

func TestBlobOrDefaultsToEmptyObject(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})

	assert.Equal(t, "{}", svc.GetDGpuInfoValuesJSON())

	store.SetBlob(busdata.BlobGPUInfo, `{"temp_c":55}`)
	assert.Equal(t, `{"temp_c":55}`, svc.GetDGpuInfoValuesJSON())
	assert.Equal(t, `{"temp_c":55}`, svc.GetIGpuInfoValuesJSON(), "igpu getter serves the same combined snapshot")
}

func TestConsumeModeReapplyPendingClearsFlag(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	store.SetModeReapplyPending(true)
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})

	assert.True(t, svc.ConsumeModeReapplyPending())
	assert.False(t, store.ModeReapplyPending())
	assert.False(t, svc.ConsumeModeReapplyPending())
}

func TestWaterCoolerSupportedAndAvailableReadDistinctFlags(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})

	assert.False(t, svc.GetWaterCoolerSupported())
	assert.False(t, svc.GetWaterCoolerAvailable())

	store.SetWaterCoolerSupported(true)
	store.SetWaterCoolerScanningEnabled(true)
	assert.True(t, svc.GetWaterCoolerSupported())
	assert.True(t, svc.GetWaterCoolerAvailable())
}

func TestEnableWaterCoolerTogglesScanningFlag(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})

	assert.True(t, svc.EnableWaterCooler(true))
	assert.True(t, store.WaterCoolerScanningEnabled())
	assert.True(t, svc.EnableWaterCooler(false))
	assert.False(t, store.WaterCoolerScanningEnabled())
}

func TestNVIDIAPowerCTRLLimitsReadCachedWatts(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	store.SetPowerLimitWatts(65, 90)
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})

	assert.Equal(t, int32(65), svc.GetNVIDIAPowerCTRLDefaultPowerLimit())
	assert.Equal(t, int32(90), svc.GetNVIDIAPowerCTRLMaxPowerLimit())
}

func flatFanTable(t *testing.T, percent int32) *fancurve.Table {
	t.Helper()
	points := make([]fancurve.Point, fancurve.PointCount)
	for i := range points {
		points[i] = fancurve.Point{
			Temp:       int32(fancurve.MinTemp + fancurve.Step*i),
			FanPercent: percent,
		}
	}
	table, err := fancurve.NewTable(points)
	require.NoError(t, err)
	return table
}

func TestApplyAndRevertFanProfilesRoundTripsThroughWorker(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	worker := fancontrol.New(noFans{}, store, nil, nil)
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store, Fan: worker})

	req := struct {
		CPU *fancurve.Table `json:"cpu"`
	}{CPU: flatFanTable(t, 42)}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.True(t, svc.ApplyFanProfiles(data))
	assert.True(t, svc.RevertFanProfiles())
}

type noFans struct{}

func (noFans) FanIndices() []fancontrol.FanIndex                    { return nil }
func (noFans) ReadTemp(fancontrol.FanIndex) (float64, error)        { return 0, nil }
func (noFans) ReadSpeed(fancontrol.FanIndex) (int32, error)         { return 0, nil }
func (noFans) WriteSpeed(fancontrol.FanIndex, int32) error          { return nil }

func TestSetFanProfileCPUOverridesOnlyCPUChannel(t *testing.T) {
	coord := &fakeCoordinator{
		currentFanProfile: fancontrol.ActiveProfile{
			Tables: fancontrol.Tables{GPU: flatFanTable(t, 30)},
		},
	}
	store := busdata.New()
	worker := fancontrol.New(noFans{}, store, nil, nil)
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store, Fan: worker})

	data, err := json.Marshal(flatFanTable(t, 77))
	require.NoError(t, err)

	assert.True(t, svc.SetFanProfileCPU(data))
}

func TestSetFanProfileCPUFailsOnMalformedJSON(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	worker := fancontrol.New(noFans{}, store, nil, nil)
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store, Fan: worker})

	assert.False(t, svc.SetFanProfileCPU([]byte("not json")))
}

func TestNamedFanProfilePresetsRoundTrip(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord, NamedPresets: map[string]fancontrol.Tables{}})

	tables := fancontrol.Tables{CPU: flatFanTable(t, 55)}
	data, err := json.Marshal(tables)
	require.NoError(t, err)

	assert.True(t, svc.SetFanProfile("silent", data))
	assert.Equal(t, []string{"silent"}, svc.GetFanProfileNames())

	stored, err := svc.GetFanProfile("silent")
	require.NoError(t, err)
	assert.Contains(t, stored, `"cpu"`)

	missing, err := svc.GetFanProfile("does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "{}", missing)
}

func TestGetCpuFrequencyLimitsJSONReadsActiveProfile(t *testing.T) {
	minKHz := int32(800000)
	maxKHz := int32(4200000)
	defaults := profile.NewDefaultTable(&profile.Profile{
		ID: "default-balanced",
		CPU: profile.CPU{
			ScalingMinKHz: &minKHz,
			ScalingMaxKHz: &maxKHz,
		},
	})
	coord := &fakeCoordinator{activeProfileID: "default-balanced"}
	svc := NewService(ServiceOptions{Coordinator: coord, Defaults: defaults})

	result, err := svc.GetCpuFrequencyLimitsJSON()
	require.NoError(t, err)

	var limits cpuFrequencyLimits
	require.NoError(t, json.Unmarshal([]byte(result), &limits))
	assert.Equal(t, minKHz, limits.MinKHz)
	assert.Equal(t, maxKHz, limits.MaxKHz)
}

func TestGetActiveProfileJSONFallsBackToEmptyObjectWhenUnresolved(t *testing.T) {
	coord := &fakeCoordinator{activeProfileID: "unknown"}
	svc := NewService(ServiceOptions{Coordinator: coord})

	result, err := svc.GetActiveProfileJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", result)
}

func TestODMPowerLimitsJSONWithoutProviderReturnsEmptyList(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})

	result, err := svc.ODMPowerLimitsJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", result, "no profileSettings/tdp wired, returns empty list without touching bus-data")
	assert.Equal(t, "", store.Blob(busdata.BlobTDPInfo))
}
