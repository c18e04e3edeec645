package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/swddap/pkg/dap"
	"github.com/OpenTraceLab/swddap/pkg/swd"
)

// openSession opens the first known CMSIS-DAP probe and runs the probe
// configurator over it. Callers must Close the returned Context.
func openSession() (*swd.Context, error) {
	carrier, err := dap.OpenProbe()
	if err != nil {
		return nil, fmt.Errorf("open probe: %w", err)
	}

	c, err := swd.NewContext(carrier)
	if err != nil {
		carrier.Close()
		return nil, fmt.Errorf("configure probe: %w", err)
	}
	return c, nil
}
