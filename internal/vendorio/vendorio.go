// Package vendorio supplies inert implementations of the daemon's
// vendor-ioctl and BLE transport boundaries (fancontrol.IOProvider,
// hardwaremonitor.WebcamProvider, profilesettings.TDPProvider,
// watercooler.GATTClient). Every real implementation of these talks to a
// proprietary kernel module (tuxedo_io) or a BLE GATT stack through cgo
// bindings this module does not carry; wiring one in is a packaging
// decision for whoever builds tccd against real hardware, not something
// this tree can fabricate. These stand-ins let the daemon start and
// answer every bus call with the "not present" values the real bindings
// would report on a machine without the vendor module loaded.
package vendorio

import (
	"context"

	"github.com/tuxedocomputers/tccd/internal/fancontrol"
	"github.com/tuxedocomputers/tccd/internal/profilesettings"
	"github.com/tuxedocomputers/tccd/internal/watercooler"
)

// NoFans reports no fans present; fancontrol.Worker.Tick degrades to
// sample-only mode against it.
type NoFans struct{}

func (NoFans) FanIndices() []fancontrol.FanIndex             { return nil }
func (NoFans) ReadTemp(fancontrol.FanIndex) (float64, error) { return 0, nil }
func (NoFans) ReadSpeed(fancontrol.FanIndex) (int32, error)  { return 0, nil }
func (NoFans) WriteSpeed(fancontrol.FanIndex, int32) error   { return nil }

// NoWebcam reports the vendor webcam kill switch as absent.
type NoWebcam struct{}

func (NoWebcam) Available() bool { return false }
func (NoWebcam) Enabled() bool   { return false }

// NoTDP reports no ODM power-limit sliders and rejects every write.
type NoTDP struct{}

func (NoTDP) ReadTDPInfo() []profilesettings.TDPInfo { return nil }
func (NoTDP) WriteTDPValues([]int32) bool            { return false }

// NoGATT never finds the water-cooler peripheral, so watercooler.Worker
// stays in the Scanning state forever without erroring.
type NoGATT struct{}

func (NoGATT) Scan(ctx context.Context) (string, error)        { return "", context.Canceled }
func (NoGATT) Connect(ctx context.Context, handle string) error { return context.Canceled }
func (NoGATT) Disconnect(ctx context.Context) error              { return nil }
func (NoGATT) WriteFanSpeed(ctx context.Context, percent int32) error { return context.Canceled }
func (NoGATT) WritePumpVoltage(ctx context.Context, voltage watercooler.PumpVoltage) error {
	return context.Canceled
}
func (NoGATT) WriteLED(ctx context.Context, r, g, b byte, mode watercooler.LEDMode) error {
	return context.Canceled
}
