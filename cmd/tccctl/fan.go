package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type fanStatusEntry struct {
	Index   int     `json:"index"`
	TempC   float64 `json:"temp_c"`
	Percent int32   `json:"percent"`
}

func newFanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fan",
		Short: "Read and control fan curves",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show per-fan temperature and speed",
			RunE: func(cmd *cobra.Command, args []string) error {
				var entries []fanStatusEntry
				if err := api.get("/tccd/v1/fan/status", &entries); err != nil {
					return err
				}
				printer := message.NewPrinter(language.English)
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FAN\tTEMP C\tSPEED %")
				for _, e := range entries {
					printer.Fprintf(tw, "%d\t%.1f\t%d\n", e.Index, e.TempC, e.Percent)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "min-speed",
			Short: "Show the fans' minimum speed",
			RunE: func(cmd *cobra.Command, args []string) error {
				var v int32
				if err := api.get("/tccd/v1/fan/min-speed", &v); err != nil {
					return err
				}
				fmt.Println(v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "revert",
			Short: "Revert any temporary fan curve override",
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/fan/revert", nil, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
	)
	return cmd
}
