// Command tccctl is a command-line client for the tccd bus surface: it
// talks HTTP to the daemon's REST adaptor the same way a desktop GUI
// would, one subcommand per RPC group.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagAddr string
	api      *client
)

func main() {
	root := &cobra.Command{
		Use:   "tccctl",
		Short: "Command-line client for the TUXEDO Control Center daemon",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			api = newClient(flagAddr)
		},
	}
	root.PersistentFlags().StringVar(&flagAddr, "addr", "http://127.0.0.1:30100", "tccd bus surface address")

	root.AddCommand(
		newProfileCmd(),
		newFanCmd(),
		newPowerCmd(),
		newWaterCoolerCmd(),
		newChargingCmd(),
		newTelemetryCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
