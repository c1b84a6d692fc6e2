package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPowerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Read the daemon's resolved power state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Print the current power state (power_ac, power_bat, power_wc)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var state string
			if err := api.get("/tccd/v1/state/power", &state); err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		},
	})
	return cmd
}
