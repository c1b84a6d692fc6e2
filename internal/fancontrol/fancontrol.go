// Package fancontrol resolves and applies the active fan curve across
// CPU and GPU fans, and drives the water cooler's fan/pump/LED setpoints
// when autoControlWC is set.
package fancontrol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/fancurve"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/watercooler"
)

// FanIndex identifies a physical fan: 0 is always CPU, 1.. are GPU fans.
type FanIndex int

const CPUFanIndex FanIndex = 0

// IOProvider is the vendor ioctl boundary for reading fan temp/speed and
// writing a setpoint; a real implementation talks to the vendor kernel
// module, tests use a fake.
type IOProvider interface {
	FanIndices() []FanIndex
	ReadTemp(index FanIndex) (tempC float64, err error)
	ReadSpeed(index FanIndex) (percent int32, err error)
	WriteSpeed(index FanIndex, percent int32) error
}

// CoolerSink receives the computed water-cooler fan bucket and pump
// voltage when autoControlWC is active; internal/watercooler.Worker
// satisfies this.
type CoolerSink interface {
	Connected() bool
	SetFanSpeed(ctx context.Context, percent int32) error
	SetPumpVoltage(ctx context.Context, voltage int32) error
	SetLEDColor(ctx context.Context, r, g, b byte, mode watercooler.LEDMode) error
}

// Tables is the active fan curve set, installed either as temporary
// overrides (ApplyFanProfiles) or resolved from the active profile.
type Tables struct {
	CPU            *fancurve.Table
	GPU            *fancurve.Table
	WaterCoolerFan *fancurve.Table
	Pump           *fancurve.Table
}

// ActiveProfile is the subset of a profile the fan worker needs.
type ActiveProfile struct {
	FanControlEnabled bool
	UseControl        bool
	OffsetFanspeed    int32
	SameSpeed         bool
	AutoControlWC     bool
	LEDMode           watercooler.LEDMode
	MinSpeed          int32
	Tables            Tables
	NamedPresetTables Tables // resolved from fan.fanProfile by the caller
}

// Sample is one fan reading (temperature and speed percentage); it
// carries no timestamp.
type Sample struct {
	TempC   float64
	Percent int32
}

// Worker resolves and applies the active fan table every tick.
type Worker struct {
	io      IOProvider
	busdata *busdata.Store
	cooler  CoolerSink
	logger  logging.Logger

	mu        sync.Mutex
	temporary *Tables
	samples   map[FanIndex]Sample
}

// New returns a Worker. cooler may be nil if no water cooler is present.
func New(io IOProvider, store *busdata.Store, cooler CoolerSink, logger logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Worker{
		io:      io,
		busdata: store,
		cooler:  cooler,
		logger:  logger,
		samples: make(map[FanIndex]Sample),
	}
}

// ApplyFanProfiles installs temporary curve overrides; they win over the
// active profile's tables until RevertFanProfiles is called. Temporary
// curves are never persisted.
func (w *Worker) ApplyFanProfiles(cpu, gpu, waterFan, pump *fancurve.Table) {
	w.mu.Lock()
	w.temporary = &Tables{CPU: cpu, GPU: gpu, WaterCoolerFan: waterFan, Pump: pump}
	w.mu.Unlock()
}

// RevertFanProfiles clears any temporary override.
func (w *Worker) RevertFanProfiles() {
	w.mu.Lock()
	w.temporary = nil
	w.mu.Unlock()
}

func (w *Worker) resolveTables(p ActiveProfile) Tables {
	w.mu.Lock()
	temp := w.temporary
	w.mu.Unlock()

	if temp != nil {
		return *temp
	}
	if p.Tables.CPU != nil || p.Tables.GPU != nil {
		return p.Tables
	}
	return p.NamedPresetTables
}

// Tick performs one fan-control iteration per spec section 4.5.
func (w *Worker) Tick(ctx context.Context, p ActiveProfile) error {
	if !p.FanControlEnabled || !p.UseControl {
		w.sampleOnly()
		w.publishSamples()
		return nil
	}

	tables := w.resolveTables(p)

	var gpuSetpoints []int32
	var cpuPercent int32
	for _, index := range w.io.FanIndices() {
		tempC, err := w.io.ReadTemp(index)
		if err != nil {
			continue
		}

		table := tables.GPU
		if index == CPUFanIndex {
			table = tables.CPU
		}
		if table == nil {
			continue
		}

		setpoint := clamp(table.FanPercent(tempC)+p.OffsetFanspeed, p.MinSpeed, 100)

		if index == CPUFanIndex {
			cpuPercent = setpoint
		} else {
			gpuSetpoints = append(gpuSetpoints, setpoint)
		}

		w.mu.Lock()
		w.samples[index] = Sample{TempC: tempC, Percent: setpoint}
		w.mu.Unlock()

		if index == CPUFanIndex {
			w.io.WriteSpeed(index, setpoint)
		}
	}

	if p.SameSpeed && len(gpuSetpoints) > 0 {
		max := gpuSetpoints[0]
		for _, v := range gpuSetpoints[1:] {
			if v > max {
				max = v
			}
		}
		for _, index := range w.io.FanIndices() {
			if index != CPUFanIndex {
				w.io.WriteSpeed(index, max)
			}
		}
	} else {
		i := 0
		for _, index := range w.io.FanIndices() {
			if index == CPUFanIndex {
				continue
			}
			if i < len(gpuSetpoints) {
				w.io.WriteSpeed(index, gpuSetpoints[i])
			}
			i++
		}
	}

	if p.AutoControlWC && w.cooler != nil && w.cooler.Connected() {
		w.pushCoolerSetpoints(ctx, cpuPercent, tables, p.LEDMode)
	}

	w.publishSamples()
	return nil
}

// fanStatusEntry is the wire shape of one fan's entry in the cached
// fan_status JSON blob the RPC adaptor serves.
type fanStatusEntry struct {
	Index   int     `json:"index"`
	TempC   float64 `json:"temp_c"`
	Percent int32   `json:"percent"`
}

func (w *Worker) publishSamples() {
	w.mu.Lock()
	entries := make([]fanStatusEntry, 0, len(w.samples))
	for index, sample := range w.samples {
		entries = append(entries, fanStatusEntry{Index: int(index), TempC: sample.TempC, Percent: sample.Percent})
	}
	w.mu.Unlock()

	payload, err := json.Marshal(entries)
	if err != nil {
		return
	}
	w.busdata.SetBlob(busdata.BlobFanStatus, string(payload))
}

func (w *Worker) pushCoolerSetpoints(ctx context.Context, cpuFanPercent int32, tables Tables, ledMode watercooler.LEDMode) {
	bucket := fancurve.WaterCoolerFanBucket(cpuFanPercent)
	w.cooler.SetFanSpeed(ctx, bucket)

	if tables.Pump != nil {
		voltage := tables.Pump.PumpVoltageAt(float64(cpuFanPercent))
		w.cooler.SetPumpVoltage(ctx, int32(voltage))
	}

	if ledMode == watercooler.LEDTemperature {
		r, g, b := temperatureGradient(cpuFanPercent)
		w.cooler.SetLEDColor(ctx, r, g, b, watercooler.LEDTemperature)
	}
}

// temperatureGradient maps a 0-100 fan percentage to a blue (cold) to
// red (hot) color for the cooler's Temperature LED mode.
func temperatureGradient(fanPercent int32) (r, g, b byte) {
	if fanPercent < 0 {
		fanPercent = 0
	}
	if fanPercent > 100 {
		fanPercent = 100
	}
	r = byte(fanPercent * 255 / 100)
	b = byte((100 - fanPercent) * 255 / 100)
	return r, 0, b
}

func (w *Worker) sampleOnly() {
	for _, index := range w.io.FanIndices() {
		tempC, err := w.io.ReadTemp(index)
		if err != nil {
			continue
		}
		percent, err := w.io.ReadSpeed(index)
		if err != nil {
			continue
		}
		w.mu.Lock()
		w.samples[index] = Sample{TempC: tempC, Percent: percent}
		w.mu.Unlock()
	}
}

// Samples returns the last deposited reading per fan index, for the
// RPC adaptor's fan-status getter.
func (w *Worker) Samples() map[FanIndex]Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[FanIndex]Sample, len(w.samples))
	for k, v := range w.samples {
		out[k] = v
	}
	return out
}

func clamp(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
