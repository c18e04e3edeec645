package dap

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// ProbeInfo describes a detected CMSIS-DAP-shaped USB device, for reporting
// purposes only; it does not imply the device was opened or configured.
type ProbeInfo struct {
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a human-friendly one-line description.
func (i ProbeInfo) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s (%04X:%04X)", i.Description, i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("CMSIS-DAP probe (%04X:%04X)", i.VendorID, i.ProductID)
}

// knownDescriptions maps documented and commonly seen CMSIS-DAP VID/PID
// pairs to a human-friendly description. The two entries marked "primary"
// are the discovery identities actually used by OpenProbe; the rest are
// reported for operator convenience only.
var knownDescriptions = []struct {
	vid, pid    uint16
	description string
}{
	{0x1FC9, 0x0143, "CMSIS-DAP probe (primary)"},
	{0x2E8A, 0x000C, "Raspberry Pi CMSIS-DAP (primary)"},
	{0x0D28, 0x0204, "DAPLink CMSIS-DAP"},
	{0x1366, 0x0101, "SEGGER J-Link CMSIS-DAP"},
}

// DiscoverProbes enumerates connected USB devices that match a known
// CMSIS-DAP VID/PID pair. It never fails on "no devices found" — an empty
// slice with a nil error is a valid result.
func DiscoverProbes(ctx context.Context) ([]ProbeInfo, error) {
	var found []ProbeInfo

	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := classify(desc); ok {
			found = append(found, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return found, err
	}
	return found, nil
}

func classify(desc *gousb.DeviceDesc) (ProbeInfo, bool) {
	for _, known := range knownDescriptions {
		if uint16(desc.Vendor) == known.vid && uint16(desc.Product) == known.pid {
			return ProbeInfo{
				Description: known.description,
				VendorID:    known.vid,
				ProductID:   known.pid,
			}, true
		}
	}
	return ProbeInfo{}, false
}
