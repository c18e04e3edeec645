package cmd

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/swddap/pkg/swd"
	"github.com/spf13/cobra"
)

var (
	attachMultidrop bool
	attachTarget    string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Run the SWD attach sequence and print DP.IDR",
	Long: `Configure the probe, run the JTAG-to-SWD / dormant-wake / line-reset
attach sequence, and read DP.IDR. With --multidrop, a DP.TARGETSEL write for
--target is appended so a specific target ID is selected on a shared bus.`,
	RunE: runAttach,
}

func init() {
	rootCmd.AddCommand(attachCmd)
	attachCmd.Flags().BoolVar(&attachMultidrop, "multidrop", false, "select a target ID on a multidrop SWD bus")
	attachCmd.Flags().StringVar(&attachTarget, "target", "0x0", "target ID for --multidrop (hex or decimal)")
}

func runAttach(cmd *cobra.Command, args []string) error {
	target, err := strconv.ParseUint(attachTarget, 0, 32)
	if err != nil {
		return fmt.Errorf("parse --target: %w", err)
	}

	c, err := openSession()
	if err != nil {
		return err
	}
	defer c.Close()

	var flags swd.AttachFlags
	if attachMultidrop {
		flags |= swd.Multidrop
	}

	idcode, err := c.Attach(flags, uint32(target))
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	idr := swd.ParseIDR(idcode)
	fmt.Println(idr.String())
	return nil
}
