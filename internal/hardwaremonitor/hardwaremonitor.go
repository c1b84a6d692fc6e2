// Package hardwaremonitor runs the daemon's combined ~1 Hz sensor poll:
// dGPU via nvidia-smi, iGPU via hwmon/drm sysfs, CPU power via RAPL
// energy-counter differencing, PRIME mode classification, and webcam
// switch status. All of it is gated on the shared bus-data store's
// 10 s sensor-collection auto-disable so an idle client stops the
// daemon from waking the GPU or re-reading RAPL counters for nothing.
package hardwaremonitor

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/procexec"
	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

// PrimeMode is the classified GPU-switching mode for this device.
type PrimeMode string

const (
	PrimeUnknown  PrimeMode = "unknown"
	PrimeIntel    PrimeMode = "intel"
	PrimeNVIDIA   PrimeMode = "nvidia"
	PrimeHybrid   PrimeMode = "hybrid"
	PrimeOnDemand PrimeMode = "on-demand"
)

// GPUInfo is the dGPU sensor snapshot published to bus-data.
type GPUInfo struct {
	TempC               float64 `json:"temp_c"`
	CoreClockMHz        int32   `json:"core_clock_mhz"`
	MaxClockMHz         int32   `json:"max_clock_mhz"`
	PowerDrawWatts       float64 `json:"power_draw_watts"`
	MaxPowerLimitWatts   float64 `json:"max_power_limit_watts"`
	EnforcedPowerLimitW  float64 `json:"enforced_power_limit_watts"`
	D0 bool `json:"d0"`
}

// CPUInfo is the CPU sensor snapshot published to bus-data.
type CPUInfo struct {
	PowerWatts float64   `json:"power_watts"`
	Prime      PrimeMode `json:"prime_mode"`
}

// WebcamInfo is the vendor webcam switch snapshot.
type WebcamInfo struct {
	Available bool `json:"available"`
	Enabled   bool `json:"enabled"`
}

// WebcamProvider is the vendor ioctl boundary for the webcam kill
// switch; interface-bound for the same reason watercooler.GATTClient
// and fancontrol.IOProvider are.
type WebcamProvider interface {
	Available() bool
	Enabled() bool
}

// iGPU hwmon/drm sysfs paths vary by vendor; these are vars so a test or
// a future per-device table can relocate them.
var (
	igpuHwmonTempPath  = "/sys/class/hwmon/hwmon0/temp1_input"
	igpuDRMFreqPath    = "/sys/class/drm/card0/gt_cur_freq_mhz"
	primeBootVGAGlob   = "/sys/bus/pci/devices/*/boot_vga"
	raplEnergyUJPath   = "/sys/class/powercap/intel-rapl:0/energy_uj"
	raplMaxRangeUJPath = "/sys/class/powercap/intel-rapl:0/max_energy_range_uj"
)

// Worker polls all sensor sources and deposits their JSON snapshots into
// a shared busdata.Store.
type Worker struct {
	runner  procexec.Runner
	busdata *busdata.Store
	webcam  WebcamProvider
	logger  logging.Logger

	d0MetricsEnabled bool

	lastRAPLSample    time.Time
	lastRAPLEnergyUJ   int64
	haveRAPLBaseline bool
}

// New returns a Worker. webcam may be nil if no webcam switch is present.
func New(runner procexec.Runner, store *busdata.Store, webcam WebcamProvider, logger logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Worker{runner: runner, busdata: store, webcam: webcam, logger: logger, d0MetricsEnabled: true}
}

// SetD0MetricsEnabled gates the dGPU query: when false, nvidia-smi is
// never invoked, so a GPU in a PCIe D3cold/runtime-suspended state is
// never woken just to answer a poll.
func (w *Worker) SetD0MetricsEnabled(enabled bool) {
	w.d0MetricsEnabled = enabled
}

// Tick runs one sensor poll. It is a workerloop.TickFunc.
func (w *Worker) Tick(ctx context.Context) error {
	if !w.busdata.SensorDataCollectionEnabled() {
		return nil
	}

	gpu := w.pollGPU(ctx)
	if payload, err := json.Marshal(gpu); err == nil {
		w.busdata.SetBlob(busdata.BlobGPUInfo, string(payload))
	}

	cpu := w.pollCPU()
	if payload, err := json.Marshal(cpu); err == nil {
		w.busdata.SetBlob(busdata.BlobCPUInfo, string(payload))
	}

	if w.webcam != nil {
		webcam := WebcamInfo{Available: w.webcam.Available(), Enabled: w.webcam.Enabled()}
		if payload, err := json.Marshal(webcam); err == nil {
			w.busdata.SetBlob(busdata.BlobWebcamInfo, string(payload))
		}
	}

	return nil
}

func (w *Worker) pollGPU(ctx context.Context) GPUInfo {
	info := GPUInfo{D0: w.d0MetricsEnabled}
	if !w.d0MetricsEnabled {
		return w.pollIGPU(info)
	}

	out, err := w.runner.Run(ctx, "nvidia-smi",
		"--query-gpu=temperature.gpu,clocks.gr,clocks.max.gr,power.draw,power.max_limit,power.limit",
		"--format=csv,noheader,nounits")
	if err != nil {
		return w.pollIGPU(info)
	}

	fields := strings.Split(out, ",")
	if len(fields) != 6 {
		return w.pollIGPU(info)
	}
	info.TempC = parseFloat(fields[0])
	info.CoreClockMHz = int32(parseFloat(fields[1]))
	info.MaxClockMHz = int32(parseFloat(fields[2]))
	info.PowerDrawWatts = parseFloat(fields[3])
	info.MaxPowerLimitWatts = parseFloat(fields[4])
	info.EnforcedPowerLimitW = parseFloat(fields[5])
	return info
}

// pollIGPU falls back to hwmon/drm sysfs when nvidia-smi is unavailable
// or gated off, covering the integrated-GPU-only and Intel-only cases.
func (w *Worker) pollIGPU(info GPUInfo) GPUInfo {
	if tempMilliC, err := sysfs.New(igpuHwmonTempPath).ReadInt64(); err == nil {
		info.TempC = float64(tempMilliC) / 1000.0
	}
	if freq, err := sysfs.New(igpuDRMFreqPath).ReadInt32(); err == nil {
		info.CoreClockMHz = freq
	}
	return info
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// pollCPU differentiates the RAPL package-energy counter against the
// previous sample to compute instantaneous wattage, and classifies the
// PRIME mode from the boot_vga sysfs nodes.
func (w *Worker) pollCPU() CPUInfo {
	info := CPUInfo{Prime: w.classifyPrimeMode()}

	energyUJ, err := sysfs.New(raplEnergyUJPath).ReadInt64()
	if err != nil {
		w.haveRAPLBaseline = false
		return info
	}
	now := time.Now()

	if w.haveRAPLBaseline {
		elapsed := now.Sub(w.lastRAPLSample).Seconds()
		deltaUJ := energyUJ - w.lastRAPLEnergyUJ
		if deltaUJ < 0 {
			// Counter wrapped; fold in the max range once rather than
			// discarding the sample.
			if maxRange, rangeErr := sysfs.New(raplMaxRangeUJPath).ReadInt64(); rangeErr == nil {
				deltaUJ += maxRange
			} else {
				deltaUJ = 0
			}
		}
		if elapsed > 0 {
			info.PowerWatts = float64(deltaUJ) / 1e6 / elapsed
		}
	}

	w.lastRAPLEnergyUJ = energyUJ
	w.lastRAPLSample = now
	w.haveRAPLBaseline = true
	return info
}

// classifyPrimeMode reads every PCI display device's boot_vga node to
// determine whether Intel alone, or Intel alongside a discrete GPU
// (Hybrid/On-Demand render offload), drives the primary display. Without
// per-vendor PCI class/ID enumeration in the retrieved pack this can't
// yet distinguish NVIDIA-only or On-Demand from Hybrid; both collapse to
// Hybrid whenever more than one boot_vga-capable PCI device is present.
func (w *Worker) classifyPrimeMode() PrimeMode {
	matches, err := filepathGlob(primeBootVGAGlob)
	if err != nil || len(matches) == 0 {
		return PrimeUnknown
	}
	if len(matches) > 1 {
		return PrimeHybrid
	}
	return PrimeIntel
}

// filepathGlob is a thin indirection over filepath.Glob so tests can
// stub it without touching the real /sys/bus/pci tree.
var filepathGlob = filepath.Glob
