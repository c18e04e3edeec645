package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var dpCmd = &cobra.Command{
	Use:   "dp",
	Short: "Read or write a DP register",
}

var dpReadCmd = &cobra.Command{
	Use:   "read <addr>",
	Short: "Read a DP register",
	Args:  cobra.ExactArgs(1),
	RunE:  runDPRead,
}

var dpWriteCmd = &cobra.Command{
	Use:   "write <addr> <value>",
	Short: "Write a DP register",
	Args:  cobra.ExactArgs(2),
	RunE:  runDPWrite,
}

func init() {
	rootCmd.AddCommand(dpCmd)
	dpCmd.AddCommand(dpReadCmd, dpWriteCmd)
}

func runDPRead(cmd *cobra.Command, args []string) error {
	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}

	c, err := openSession()
	if err != nil {
		return err
	}
	defer c.Close()

	var val uint32
	c.Init()
	c.DPRead(uint32(addr), &val)
	if err := c.Exec(); err != nil {
		return fmt.Errorf("dp read 0x%X: %w", addr, err)
	}
	fmt.Printf("0x%08X\n", val)
	return nil
}

func runDPWrite(cmd *cobra.Command, args []string) error {
	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	val, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("parse value: %w", err)
	}

	c, err := openSession()
	if err != nil {
		return err
	}
	defer c.Close()

	c.Init()
	c.DPWrite(uint32(addr), uint32(val))
	if err := c.Exec(); err != nil {
		return fmt.Errorf("dp write 0x%X: %w", addr, err)
	}
	return nil
}
