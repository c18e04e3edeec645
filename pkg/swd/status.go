package swd

import (
	"fmt"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

// SWD status byte bits, as returned in byte 2 of a DAP_Transfer response.
const (
	rspAckMask      = 0x07
	rspAckOK        = 0x01
	rspAckWait      = 0x02
	rspAckFault     = 0x04
	rspProtoError   = 1 << 3
	rspValueMismatch = 1 << 4
)

// decodeStatus maps a raw SWD status byte to an error taxonomy. Decode
// order matters: ProtocolError takes priority over ACK, and ACK takes
// priority over ValueMismatch.
func decodeStatus(n byte) error {
	if n&rspProtoError != 0 {
		return newErr("status", dap.SwdParity, nil)
	}

	switch n & rspAckMask {
	case rspAckOK:
		// fall through to ValueMismatch check
	case rspAckWait:
		return newErr("status", dap.Timeout, nil)
	case rspAckFault:
		return newErr("status", dap.SwdFault, nil)
	case rspAckMask: // all ACK bits set
		return newErr("status", dap.SwdSilent, nil)
	default:
		return newErr("status", dap.SwdBogus, fmt.Errorf("ack=0x%02X", n&rspAckMask))
	}

	if n&rspValueMismatch != 0 {
		return newErr("status", dap.Match, nil)
	}
	return nil
}

// newErr is a small local alias so this package's call sites read the same
// way as package dap's; it just forwards to a *dap.Error.
func newErr(op string, k dap.Kind, cause error) error {
	return &dap.Error{Kind: k, Op: op, Err: cause}
}
