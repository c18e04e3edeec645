package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print probe identification and capability bits",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	c, err := openSession()
	if err != nil {
		return err
	}
	defer c.Close()

	strs, err := c.Info()
	if err != nil {
		return fmt.Errorf("query info: %w", err)
	}
	caps, err := c.Capabilities()
	if err != nil {
		return fmt.Errorf("query capabilities: %w", err)
	}

	fmt.Printf("Vendor:        %s\n", strs.Vendor)
	fmt.Printf("Product:       %s\n", strs.Product)
	fmt.Printf("Serial:        %s\n", strs.SerialNum)
	fmt.Printf("Firmware:      %s\n", strs.FirmwareVer)
	fmt.Printf("Max packet:    %d bytes x %d\n", c.MaxPacketSize(), c.MaxPacketCount())
	fmt.Printf("Capabilities:  %s\n", caps.String())
	return nil
}
