package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWaterCoolerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watercooler",
		Short: "Control the BLE water-cooler accessory",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show support, presence, and connection state",
			RunE: func(cmd *cobra.Command, args []string) error {
				var supported, available, connected bool
				if err := api.get("/tccd/v1/watercooler/supported", &supported); err != nil {
					return err
				}
				if err := api.get("/tccd/v1/watercooler/available", &available); err != nil {
					return err
				}
				if err := api.get("/tccd/v1/watercooler/connected", &connected); err != nil {
					return err
				}
				fmt.Printf("supported: %t\navailable: %t\nconnected: %t\n", supported, available, connected)
				return nil
			},
		},
		&cobra.Command{
			Use:   "enable",
			Short: "Start scanning for the water cooler",
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/watercooler/enable", map[string]bool{"enabled": true}, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop scanning for / disconnect from the water cooler",
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/watercooler/enable", map[string]bool{"enabled": false}, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
		&cobra.Command{
			Use:   "fan-speed <percent>",
			Short: "Set the water cooler's fan speed directly",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				percent, err := parseInt(args[0])
				if err != nil {
					return err
				}
				var ok bool
				if err := api.post("/tccd/v1/watercooler/fan-speed", map[string]int{"percent": percent}, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
	)
	return cmd
}
