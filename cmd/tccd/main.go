// Command tccd is the daemon: it owns the hardware workers and the
// coordinator's 1 Hz orchestration tick, and exposes both over the
// busadaptor HTTP/WebSocket surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuxedocomputers/tccd/internal/busadaptor"
	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/coordinator"
	"github.com/tuxedocomputers/tccd/internal/cpupolicy"
	"github.com/tuxedocomputers/tccd/internal/daemonconfig"
	"github.com/tuxedocomputers/tccd/internal/device"
	"github.com/tuxedocomputers/tccd/internal/display"
	"github.com/tuxedocomputers/tccd/internal/fancontrol"
	"github.com/tuxedocomputers/tccd/internal/fnlock"
	"github.com/tuxedocomputers/tccd/internal/hardwaremonitor"
	"github.com/tuxedocomputers/tccd/internal/keyboard"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/metrics"
	"github.com/tuxedocomputers/tccd/internal/procexec"
	"github.com/tuxedocomputers/tccd/internal/profilesettings"
	"github.com/tuxedocomputers/tccd/internal/settings"
	"github.com/tuxedocomputers/tccd/internal/vendorio"
	"github.com/tuxedocomputers/tccd/internal/watercooler"
	"github.com/tuxedocomputers/tccd/internal/workerloop"
)

const dmiBasePath = "/sys/class/dmi/id"

var (
	flagListen       string
	flagStateDir     string
	flagLogFormat    string
	flagDebug        bool
	flagTickInterval time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "tccd",
		Short: "TUXEDO Control Center daemon",
		RunE:  runDaemon,
	}

	defaults := daemonconfig.NewDefault()
	root.PersistentFlags().StringVar(&flagListen, "listen", "127.0.0.1:30100", "address the bus HTTP/WebSocket surface listens on")
	root.PersistentFlags().StringVar(&flagStateDir, "state-dir", defaults.StateDir, "directory holding settings.json and autosave.json")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", defaults.LogFormat, "log output format: text or json")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", defaults.Debug, "enable debug-level logging")
	root.PersistentFlags().DurationVar(&flagTickInterval, "tick-interval", defaults.TickInterval, "coordinator orchestration cadence")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := daemonconfig.NewDefault()
	cfg.Load()
	cfg.StateDir = flagStateDir
	cfg.LogFormat = flagLogFormat
	cfg.Debug = flagDebug
	cfg.TickInterval = flagTickInterval
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	busdata.SensorCollectionTimeout = cfg.SensorIdleTimeout

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logFormat := logging.FormatText
	if cfg.LogFormat == "json" {
		logFormat = logging.FormatJSON
	}
	logger := logging.NewLogger(&logging.Config{
		Level:   level,
		Format:  logFormat,
		Output:  os.Stdout,
		Version: busadaptor.Version,
	})

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	deviceID := device.Identify(dmiBasePath, "")
	caps := device.CapabilitiesFor(deviceID)
	logger.Info("identified device", "device", string(deviceID),
		"water_cooler_supported", caps.WaterCoolerSupported,
		"ctgp_adjustment_supported", caps.CTGPAdjustmentSupported)

	defaultProfiles := builtinProfiles()
	fallbackID, err := settings.ResolveProfileID(defaultProfiles)
	if err != nil {
		return fmt.Errorf("resolve fallback profile: %w", err)
	}

	userSettings, err := settings.Load(cfg.StateDir)
	if err != nil {
		logger.Info("no persisted settings found, starting from defaults", "reason", err)
		userSettings = settings.New(fallbackID)
	}
	if healed := userSettings.HealStateMap(defaultProfiles, fallbackID); len(healed) > 0 {
		logger.Warn("healed dangling state map entries", "keys", healed)
		if err := userSettings.Save(cfg.StateDir); err != nil {
			logger.Error("failed to persist healed settings", "error", err)
		}
	}

	autosave, err := settings.LoadAutosave(cfg.StateDir)
	if err != nil {
		autosave = &settings.Autosave{}
	}

	store := busdata.New()
	collector := metrics.NewInMemoryCollector()

	cpu := cpupolicy.New()
	backlight := display.DiscoverBacklight()
	if backlight != nil && autosave.DisplayBrightness > 0 {
		backlight.SetBrightnessPercent(autosave.DisplayBrightness)
	}
	kb := keyboard.New()
	fnLockCtl := fnlock.New()
	runner := procexec.CommandRunner{}

	var modeReapplyPending, nvidiaAvailable, cTGPSupported atomic.Bool
	profileSettingsWorker := profilesettings.New(runner, logger.With("worker", "profilesettings"),
		&modeReapplyPending, &nvidiaAvailable, &cTGPSupported)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profileSettingsWorker.Start(ctx)
	store.SetNVIDIAPowerCTRLAvailable(nvidiaAvailable.Load())
	store.SetCTGPAdjustmentSupported(cTGPSupported.Load())

	cooler := watercooler.New(vendorio.NoGATT{}, store, logger.With("worker", "watercooler"), collector)
	if caps.WaterCoolerSupported {
		cooler.Start()
	}

	fan := fancontrol.New(vendorio.NoFans{}, store, cooler, logger.With("worker", "fan"))
	hwmon := hardwaremonitor.New(runner, store, vendorio.NoWebcam{}, logger.With("worker", "hwmon"))

	broker := busadaptor.NewSignalBroker(logger.With("component", "signals"))

	coord := coordinator.New(coordinator.Options{
		StateDir:             cfg.StateDir,
		Settings:             userSettings,
		Defaults:             defaultProfiles,
		BusData:              store,
		Signals:              broker,
		Logger:               logger.With("component", "coordinator"),
		CPU:                  cpu,
		Fan:                  fan,
		Cooler:               cooler,
		ProfileSettings:      profileSettingsWorker,
		Keyboard:             kb,
		WCConnectDebounce:    cfg.WCConnectDebounce,
		WCDisconnectDebounce: cfg.WCDisconnectDebounce,
	})
	if id := userSettings.StateMap[settings.StateKey(coord.PowerState().StateKey())]; id != "" {
		coord.SetCurrentProfileByID(id)
	}

	isX11 := display.DetectSessionType(os.Getenv("XDG_SESSION_TYPE")) == display.SessionX11
	svc := busadaptor.NewService(busadaptor.ServiceOptions{
		Logger:          logger.With("component", "rpc"),
		DeviceID:        deviceID,
		Capabilities:    caps,
		Coordinator:     coord,
		Defaults:        defaultProfiles,
		Settings:        userSettings,
		BusData:         store,
		Fan:             fan,
		CPU:             cpu,
		Backlight:       backlight,
		ProfileSetting:  profileSettingsWorker,
		Keyboard:        kb,
		Cooler:          cooler,
		FnLock:          fnLockCtl,
		TDP:             vendorio.NoTDP{},
		Webcam:          vendorio.NoWebcam{},
		HardwareMonitor: hwmon,
		Runner:          runner,
		IsX11:           isX11,
	})

	router := busadaptor.NewRouter(svc, logger.With("component", "http"))
	router.HandleFunc("/tccd/v1/signals", broker.HandleWebSocket)

	server := &http.Server{
		Addr:    flagListen,
		Handler: router,
	}

	coordinatorLoop := &workerloop.Loop{
		Name:     "coordinator",
		Interval: cfg.TickInterval,
		Logger:   logger.With("worker", "coordinator"),
		Metrics:  collector,
		Tick: func(ctx context.Context) error {
			// The profilesettings worker's availability flags live on
			// their own atomics (New's modeReapplyPending/nvidiaAvailable/
			// cTGPSupported args), independent of busdata.Store's copies,
			// so the RPC getters that read them off the store stay current.
			store.SetNVIDIAPowerCTRLAvailable(nvidiaAvailable.Load())
			store.SetCTGPAdjustmentSupported(cTGPSupported.Load())
			if modeReapplyPending.CompareAndSwap(true, false) {
				store.SetModeReapplyPending(true)
			}
			return coord.Tick(ctx)
		},
	}
	fanLoop := &workerloop.Loop{
		Name:           "fan",
		Interval:       cfg.TickInterval,
		Logger:         logger.With("worker", "fan"),
		Metrics:        collector,
		RunImmediately: true,
		Tick: func(ctx context.Context) error {
			return fan.Tick(ctx, coord.CurrentFanProfile())
		},
	}
	hwmonLoop := &workerloop.Loop{
		Name:           "hwmon",
		Interval:       cfg.TickInterval,
		Logger:         logger.With("worker", "hwmon"),
		Metrics:        collector,
		RunImmediately: true,
		Tick:           hwmon.Tick,
	}

	go coordinatorLoop.Run(ctx)
	go fanLoop.Run(ctx)
	go hwmonLoop.Run(ctx)
	if caps.WaterCoolerSupported {
		coolerLoop := &workerloop.Loop{
			Name:     "watercooler",
			Interval: cfg.TickInterval,
			Logger:   logger.With("worker", "watercooler"),
			Metrics:  collector,
			Tick:     cooler.Tick,
		}
		go coolerLoop.Run(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", flagListen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("http server failed", "error", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown did not complete cleanly", "error", err)
	}
	cooler.Stop(shutdownCtx)

	if backlight != nil {
		autosave.DisplayBrightness = backlight.BrightnessPercent()
		if err := autosave.Save(cfg.StateDir); err != nil {
			logger.Error("failed to persist autosave", "error", err)
		}
	}

	return nil
}
