package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type gpuInfo struct {
	TempC              float64 `json:"temp_c"`
	CoreClockMHz       int32   `json:"core_clock_mhz"`
	MaxClockMHz        int32   `json:"max_clock_mhz"`
	PowerDrawWatts     float64 `json:"power_draw_watts"`
	MaxPowerLimitWatts float64 `json:"max_power_limit_watts"`
}

type cpuInfo struct {
	PowerWatts float64 `json:"power_watts"`
	Prime      string  `json:"prime_mode"`
}

func newTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Show live GPU/CPU sensor readings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "gpu",
			Short: "Show dGPU temperature, clocks, and power draw",
			RunE: func(cmd *cobra.Command, args []string) error {
				var info gpuInfo
				if err := api.get("/tccd/v1/telemetry/dgpu", &info); err != nil {
					return err
				}
				printer := message.NewPrinter(language.English)
				printer.Printf("temp:       %.1f C\n", info.TempC)
				printer.Printf("core clock: %d MHz\n", info.CoreClockMHz)
				printer.Printf("max clock:  %d MHz\n", info.MaxClockMHz)
				printer.Printf("power draw: %.1f W (limit %.1f W)\n", info.PowerDrawWatts, info.MaxPowerLimitWatts)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cpu",
			Short: "Show CPU package power draw",
			RunE: func(cmd *cobra.Command, args []string) error {
				var info cpuInfo
				if err := api.get("/tccd/v1/telemetry/cpu", &info); err != nil {
					return err
				}
				printer := message.NewPrinter(language.English)
				printer.Printf("power: %.1f W\nprime: %s\n", info.PowerWatts, info.Prime)
				return nil
			},
		},
		&cobra.Command{
			Use:   "collection <on|off>",
			Short: "Restart the sensor-collection idle timer (on); off changes nothing",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				enabled := args[0] == "on"
				var ok bool
				if err := api.post("/tccd/v1/telemetry/collection-status", map[string]bool{"enabled": enabled}, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
	)
	return cmd
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid integer: %w", s, err)
	}
	return v, nil
}
