// Package watercooler drives the BLE-connected water cooler's state
// machine: Idle -> Scanning -> Connecting -> Connected, with a
// Reconnecting path on disconnect and a Disabled path when stopped.
package watercooler

import (
	"context"
	"errors"
	"sync"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/metrics"
	"github.com/tuxedocomputers/tccd/internal/opctx"
	"github.com/tuxedocomputers/tccd/internal/retrypolicy"
)

// State is one node of the cooler's connection state machine.
type State int

const (
	Idle State = iota
	Scanning
	Connecting
	Connected
	Reconnecting
	Disabled
)

// LEDMode is the cooler's LED behavior.
type LEDMode int

const (
	LEDOff LEDMode = iota
	LEDStatic
	LEDBreathing
	LEDRainbow
	LEDTemperature
)

// PumpVoltage mirrors internal/fancurve.PumpVoltage's enum values so the
// fan worker's computed voltage can be pushed directly.
type PumpVoltage = int32

var ErrNoDeviceFound = errors.New("watercooler: no matching device found")

// GATTClient is the BLE transport the worker drives. A real
// implementation wraps a system BlueZ/GATT binding; tests use a fake.
type GATTClient interface {
	// Scan looks for a device matching the fixed advertised name prefix
	// and vendor manufacturer ID, returning an opaque handle.
	Scan(ctx context.Context) (handle string, err error)
	// Connect opens a GATT connection and discovers the primary service
	// and its {fan%, pump-voltage, LED, status-notify} characteristics.
	Connect(ctx context.Context, handle string) error
	Disconnect(ctx context.Context) error
	WriteFanSpeed(ctx context.Context, percent int32) error
	WritePumpVoltage(ctx context.Context, voltage PumpVoltage) error
	WriteLED(ctx context.Context, r, g, b byte, mode LEDMode) error
}

// Worker owns the cooler's connection state machine and its last-known
// setpoints for RPC reporting.
type Worker struct {
	client  GATTClient
	busdata *busdata.Store
	logger  logging.Logger
	metrics metrics.Collector
	backoff *retrypolicy.ExponentialBackoff

	mu              sync.Mutex
	state           State
	handle          string
	lastFanSpeed    int32
	lastPumpVoltage PumpVoltage
	ledMode         LEDMode
	ledColor        [3]byte
}

// New returns a Worker in the Idle state.
func New(client GATTClient, store *busdata.Store, logger logging.Logger, collector metrics.Collector) *Worker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Worker{
		client:  client,
		busdata: store,
		logger:  logger,
		metrics: collector,
		backoff: retrypolicy.NewExponentialBackoff(),
		state:   Idle,
	}
}

// State returns the current connection state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Connected reports whether the cooler currently holds a live GATT
// connection, for callers gating auto-control pushes.
func (w *Worker) Connected() bool {
	return w.State() == Connected
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Start transitions Idle/Disabled -> Scanning. It is idempotent from any
// other state.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.state == Idle || w.state == Disabled {
		w.state = Scanning
	}
	w.mu.Unlock()
}

// Stop transitions to Disabled and disconnects if connected.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	wasConnected := w.state == Connected
	w.state = Disabled
	w.mu.Unlock()

	if wasConnected {
		ctx, cancel := opctx.WithTimeout(ctx, opctx.WriteTimeout)
		defer cancel()
		w.client.Disconnect(ctx)
	}
	w.busdata.SetWaterCoolerConnected(false)
}

// Tick advances the state machine by one step; it is the worker's
// workerloop.TickFunc.
func (w *Worker) Tick(ctx context.Context) error {
	switch w.State() {
	case Scanning:
		return w.tickScanning(ctx)
	case Connected:
		return w.tickConnected(ctx)
	case Reconnecting:
		return w.tickReconnecting(ctx)
	default:
		return nil
	}
}

func (w *Worker) tickScanning(ctx context.Context) error {
	scanCtx, cancel := opctx.WithTimeout(ctx, opctx.ScanTimeout)
	defer cancel()

	handle, err := w.client.Scan(scanCtx)
	if err != nil {
		return nil // stay in Scanning; next tick tries again
	}

	w.setState(Connecting)
	return w.connect(ctx, handle)
}

func (w *Worker) connect(ctx context.Context, handle string) error {
	err := retrypolicy.Retry(ctx, w.backoff, func() error {
		connectCtx, cancel := opctx.WithTimeout(ctx, opctx.ConnectTimeout)
		defer cancel()
		return w.client.Connect(connectCtx, handle)
	})
	if err != nil {
		w.metrics.RecordBLEReconnect(false)
		w.setState(Scanning)
		return err
	}

	w.mu.Lock()
	w.handle = handle
	w.state = Connected
	w.mu.Unlock()
	w.busdata.SetWaterCoolerConnected(true)
	return nil
}

func (w *Worker) tickConnected(ctx context.Context) error {
	// A real client surfaces disconnect via its status-notify
	// characteristic; Connected->Reconnecting is driven by
	// NotifyDisconnected, not polled here.
	return nil
}

// NotifyDisconnected is called by the GATT client's status-notify
// handler when the cooler drops its connection.
func (w *Worker) NotifyDisconnected() {
	w.mu.Lock()
	if w.state == Connected {
		w.state = Reconnecting
	}
	w.mu.Unlock()
	w.busdata.SetWaterCoolerConnected(false)
}

func (w *Worker) tickReconnecting(ctx context.Context) error {
	w.mu.Lock()
	handle := w.handle
	w.mu.Unlock()

	if err := w.connect(ctx, handle); err != nil {
		w.setState(Scanning)
		return err
	}
	return nil
}

// SetFanSpeed writes 0-100 to the fan characteristic and remembers it
// for RPC reporting.
func (w *Worker) SetFanSpeed(ctx context.Context, percent int32) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	ctx, cancel := opctx.WithTimeout(ctx, opctx.WriteTimeout)
	defer cancel()
	if err := w.client.WriteFanSpeed(ctx, percent); err != nil {
		return err
	}
	w.mu.Lock()
	w.lastFanSpeed = percent
	w.mu.Unlock()
	return nil
}

// SetPumpVoltage writes the pump-voltage enum.
func (w *Worker) SetPumpVoltage(ctx context.Context, voltage PumpVoltage) error {
	ctx, cancel := opctx.WithTimeout(ctx, opctx.WriteTimeout)
	defer cancel()
	if err := w.client.WritePumpVoltage(ctx, voltage); err != nil {
		return err
	}
	w.mu.Lock()
	w.lastPumpVoltage = voltage
	w.mu.Unlock()
	return nil
}

// SetLEDColor writes an LED color/mode. Temperature mode is stored here
// but the worker is always instructed with Static and a computed color;
// the fan control worker is responsible for the gradient computation.
func (w *Worker) SetLEDColor(ctx context.Context, r, g, b byte, mode LEDMode) error {
	wireMode := mode
	if mode == LEDTemperature {
		wireMode = LEDStatic
	}
	ctx, cancel := opctx.WithTimeout(ctx, opctx.WriteTimeout)
	defer cancel()
	if err := w.client.WriteLED(ctx, r, g, b, wireMode); err != nil {
		return err
	}
	w.mu.Lock()
	w.ledMode = mode
	w.ledColor = [3]byte{r, g, b}
	w.mu.Unlock()
	return nil
}

// TurnOffLED disables the LED.
func (w *Worker) TurnOffLED(ctx context.Context) error {
	return w.SetLEDColor(ctx, 0, 0, 0, LEDOff)
}

// TurnOffFan stops the fan.
func (w *Worker) TurnOffFan(ctx context.Context) error {
	return w.SetFanSpeed(ctx, 0)
}

// TurnOffPump sets pump voltage to its lowest (off) value.
func (w *Worker) TurnOffPump(ctx context.Context) error {
	return w.SetPumpVoltage(ctx, 0)
}

// LastSetpoints returns the last fan percent and pump voltage pushed,
// for the RPC adaptor's water-cooler status getter.
func (w *Worker) LastSetpoints() (fanPercent int32, pumpVoltage PumpVoltage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFanSpeed, w.lastPumpVoltage
}

// LEDState returns the last-set LED mode and color.
func (w *Worker) LEDState() (mode LEDMode, r, g, b byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledMode, w.ledColor[0], w.ledColor[1], w.ledColor[2]
}
