package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newChargingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charging",
		Short: "Read and set battery charging behavior",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "profile",
			Short: "Show the active charging profile",
			RunE: func(cmd *cobra.Command, args []string) error {
				var profile string
				if err := api.get("/tccd/v1/charging/profile", &profile); err != nil {
					return err
				}
				fmt.Println(profile)
				return nil
			},
		},
		&cobra.Command{
			Use:   "thresholds",
			Short: "Show the charge start/end thresholds",
			RunE: func(cmd *cobra.Command, args []string) error {
				var start, end int32
				if err := api.get("/tccd/v1/charging/threshold/start", &start); err != nil {
					return err
				}
				if err := api.get("/tccd/v1/charging/threshold/end", &end); err != nil {
					return err
				}
				fmt.Printf("start: %d%%\nend:   %d%%\n", start, end)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-start <percent>",
			Short: "Set the charge start threshold",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/charging/threshold/start/"+args[0], nil, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
		&cobra.Command{
			Use:   "set-end <percent>",
			Short: "Set the charge end threshold",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/charging/threshold/end/"+args[0], nil, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
	)
	return cmd
}
