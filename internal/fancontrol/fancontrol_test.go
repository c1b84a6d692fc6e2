package fancontrol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/fancurve"
	"github.com/tuxedocomputers/tccd/internal/watercooler"
)

func flatTable(fan int32, pump fancurve.PumpVoltage) *fancurve.Table {
	points := make([]fancurve.Point, fancurve.PointCount)
	for i := range points {
		points[i] = fancurve.Point{
			Temp:        int32(fancurve.MinTemp + fancurve.Step*i),
			FanPercent:  fan,
			PumpVoltage: pump,
		}
	}
	table, err := fancurve.NewTable(points)
	if err != nil {
		panic(err)
	}
	return table
}

type fakeIO struct {
	indices []FanIndex
	temps   map[FanIndex]float64
	speeds  map[FanIndex]int32
	written map[FanIndex]int32
}

func newFakeIO(indices ...FanIndex) *fakeIO {
	return &fakeIO{
		indices: indices,
		temps:   make(map[FanIndex]float64),
		speeds:  make(map[FanIndex]int32),
		written: make(map[FanIndex]int32),
	}
}

func (f *fakeIO) FanIndices() []FanIndex { return f.indices }

func (f *fakeIO) ReadTemp(index FanIndex) (float64, error) { return f.temps[index], nil }

func (f *fakeIO) ReadSpeed(index FanIndex) (int32, error) { return f.speeds[index], nil }

func (f *fakeIO) WriteSpeed(index FanIndex, percent int32) error {
	f.written[index] = percent
	return nil
}

type fakeCooler struct {
	connected bool
	fanSpeed  int32
	pump      int32
	ledMode   watercooler.LEDMode
	ledColor  [3]byte
}

func (f *fakeCooler) Connected() bool { return f.connected }

func (f *fakeCooler) SetFanSpeed(ctx context.Context, percent int32) error {
	f.fanSpeed = percent
	return nil
}

func (f *fakeCooler) SetPumpVoltage(ctx context.Context, voltage int32) error {
	f.pump = voltage
	return nil
}

func (f *fakeCooler) SetLEDColor(ctx context.Context, r, g, b byte, mode watercooler.LEDMode) error {
	f.ledMode = mode
	f.ledColor = [3]byte{r, g, b}
	return nil
}

func TestTickReadOnlyModeDoesNotWrite(t *testing.T) {
	io := newFakeIO(CPUFanIndex)
	io.temps[CPUFanIndex] = 50
	io.speeds[CPUFanIndex] = 40
	store := busdata.New()
	w := New(io, store, nil, nil)

	p := ActiveProfile{FanControlEnabled: false, UseControl: true}
	require.NoError(t, w.Tick(context.Background(), p))

	assert.Empty(t, io.written)
	samples := w.Samples()
	assert.Equal(t, int32(40), samples[CPUFanIndex].Percent)
}

func TestTickAppliesCPUTableWithOffsetAndClamp(t *testing.T) {
	io := newFakeIO(CPUFanIndex)
	io.temps[CPUFanIndex] = 60
	store := busdata.New()
	w := New(io, store, nil, nil)

	p := ActiveProfile{
		FanControlEnabled: true,
		UseControl:        true,
		OffsetFanspeed:    10,
		MinSpeed:          0,
		Tables:            Tables{CPU: flatTable(95, fancurve.PumpVoltage9)},
	}
	require.NoError(t, w.Tick(context.Background(), p))

	assert.Equal(t, int32(100), io.written[CPUFanIndex])
}

// identityTable returns a table whose fan percentage equals each
// point's own temperature, so two readings in different 5 degree
// buckets produce two different setpoints.
func identityTable() *fancurve.Table {
	points := make([]fancurve.Point, fancurve.PointCount)
	for i := range points {
		temp := int32(fancurve.MinTemp + fancurve.Step*i)
		points[i] = fancurve.Point{Temp: temp, FanPercent: temp, PumpVoltage: fancurve.PumpVoltage0}
	}
	table, err := fancurve.NewTable(points)
	if err != nil {
		panic(err)
	}
	return table
}

func TestTickSameSpeedUsesMaxAcrossGPUFans(t *testing.T) {
	gpu0, gpu1 := FanIndex(1), FanIndex(2)
	io := newFakeIO(gpu0, gpu1)
	io.temps[gpu0] = 60
	io.temps[gpu1] = 80
	store := busdata.New()
	w := New(io, store, nil, nil)

	p := ActiveProfile{
		FanControlEnabled: true,
		UseControl:        true,
		SameSpeed:         true,
		MinSpeed:          0,
		Tables:            Tables{GPU: identityTable()},
	}
	require.NoError(t, w.Tick(context.Background(), p))

	assert.Equal(t, int32(80), io.written[gpu0])
	assert.Equal(t, int32(80), io.written[gpu1])
}

func TestTickPushesCoolerSetpointsWhenAutoControlAndConnected(t *testing.T) {
	io := newFakeIO(CPUFanIndex)
	io.temps[CPUFanIndex] = 60
	store := busdata.New()
	cooler := &fakeCooler{connected: true}
	w := New(io, store, cooler, nil)

	p := ActiveProfile{
		FanControlEnabled: true,
		UseControl:        true,
		AutoControlWC:     true,
		MinSpeed:          0,
		LEDMode:           watercooler.LEDTemperature,
		Tables: Tables{
			CPU:  flatTable(65, fancurve.PumpVoltage0),
			Pump: flatTable(0, fancurve.PumpVoltage11),
		},
	}
	require.NoError(t, w.Tick(context.Background(), p))

	assert.Equal(t, int32(65), cooler.fanSpeed)
	assert.Equal(t, int32(11), cooler.pump)
	assert.Equal(t, watercooler.LEDTemperature, cooler.ledMode)
}

func TestTickSkipsCoolerPushWhenNotConnected(t *testing.T) {
	io := newFakeIO(CPUFanIndex)
	io.temps[CPUFanIndex] = 60
	store := busdata.New()
	cooler := &fakeCooler{connected: false}
	w := New(io, store, cooler, nil)

	p := ActiveProfile{
		FanControlEnabled: true,
		UseControl:        true,
		AutoControlWC:     true,
		MinSpeed:          0,
		Tables:            Tables{CPU: flatTable(65, fancurve.PumpVoltage0)},
	}
	require.NoError(t, w.Tick(context.Background(), p))

	assert.Equal(t, int32(0), cooler.fanSpeed)
}

func TestApplyFanProfilesOverridesActiveTable(t *testing.T) {
	io := newFakeIO(CPUFanIndex)
	io.temps[CPUFanIndex] = 60
	store := busdata.New()
	w := New(io, store, nil, nil)
	w.ApplyFanProfiles(flatTable(5, fancurve.PumpVoltage0), nil, nil, nil)

	p := ActiveProfile{
		FanControlEnabled: true,
		UseControl:        true,
		MinSpeed:          0,
		Tables:            Tables{CPU: flatTable(90, fancurve.PumpVoltage0)},
	}
	require.NoError(t, w.Tick(context.Background(), p))

	assert.Equal(t, int32(5), io.written[CPUFanIndex])

	w.RevertFanProfiles()
	require.NoError(t, w.Tick(context.Background(), p))
	assert.Equal(t, int32(90), io.written[CPUFanIndex])
}

func TestPublishSamplesWritesFanStatusBlob(t *testing.T) {
	io := newFakeIO(CPUFanIndex)
	io.temps[CPUFanIndex] = 45
	store := busdata.New()
	w := New(io, store, nil, nil)

	p := ActiveProfile{
		FanControlEnabled: true,
		UseControl:        true,
		MinSpeed:          0,
		Tables:            Tables{CPU: flatTable(50, fancurve.PumpVoltage0)},
	}
	require.NoError(t, w.Tick(context.Background(), p))

	blob := store.Blob(busdata.BlobFanStatus)
	require.NotEmpty(t, blob)
	var entries []fanStatusEntry
	require.NoError(t, json.Unmarshal([]byte(blob), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, int32(50), entries[0].Percent)
}
