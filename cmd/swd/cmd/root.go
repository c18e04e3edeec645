package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// verbose is the global flag shared by every subcommand.
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "swd",
	Short: "Serial Wire Debug transport engine",
	Long: `swd talks CMSIS-DAP over USB to drive a Serial Wire Debug probe:
discover attached probes, run the attach sequence, and issue single DP/AP
register transactions for scripting and diagnostics.

Examples:
  swd interfaces                     # list attached CMSIS-DAP probes
  swd attach                         # run the attach sequence, print DP.IDR
  swd attach --multidrop --target 0x01002927
  swd dp read 0x0                    # read DP.IDR
  swd ap read 0xfc                   # read an AP register`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
