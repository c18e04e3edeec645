package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/swddap/pkg/dap"
	"github.com/spf13/cobra"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List attached CMSIS-DAP probes",
	Long: `Scan the host's USB devices for CMSIS-DAP-shaped VID/PID pairs and print a
summary. Use this to confirm a probe is visible before running attach.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	probes, err := dap.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}

	if len(probes) == 0 {
		fmt.Println("No CMSIS-DAP probes found.")
		return nil
	}

	fmt.Println("Detected probes:")
	for _, p := range probes {
		fmt.Printf("  - %s\n", p.Label())
	}
	return nil
}
