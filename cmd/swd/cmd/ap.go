package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var apCmd = &cobra.Command{
	Use:   "ap",
	Short: "Read or write an AP register",
}

var apReadCmd = &cobra.Command{
	Use:   "read <addr>",
	Short: "Read an AP register",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPRead,
}

var apWriteCmd = &cobra.Command{
	Use:   "write <addr> <value>",
	Short: "Write an AP register",
	Args:  cobra.ExactArgs(2),
	RunE:  runAPWrite,
}

func init() {
	rootCmd.AddCommand(apCmd)
	apCmd.AddCommand(apReadCmd, apWriteCmd)
}

func runAPRead(cmd *cobra.Command, args []string) error {
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
	c.APRead(uint32(addr), &val)
	if err := c.Exec(); err != nil {
		return fmt.Errorf("ap read 0x%X: %w", addr, err)
	}
	fmt.Printf("0x%08X\n", val)
	return nil
}

func runAPWrite(cmd *cobra.Command, args []string) error {
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
	c.APWrite(uint32(addr), uint32(val))
	if err := c.Exec(); err != nil {
		return fmt.Errorf("ap write 0x%X: %w", addr, err)
	}
	return nil
}
