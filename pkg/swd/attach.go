package swd

import (
	"math/bits"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

// AttachFlags modifies the attach sequence.
type AttachFlags uint32

// Multidrop requests the DP.TARGETSEL write be appended to the attach
// sequence so a specific target ID is selected on a shared SWD bus.
const Multidrop AttachFlags = 1 << 0

// attachTemplate is the bit-exact 54-byte DAP_SWD_Sequence command described
// in order: opcode, sequence count, then eight SWD sequences. The first five
// encode (in order) the JTAG-to-SWD escape prelude, the dormant-state
// selection alert sequence and activation code, and the line reset; the last
// three form a DP.TARGETSEL write whose target ID and parity are patched in
// for multidrop attach. This byte
// pattern is opaque: it is not reconstructed from structured code, it is
// transcribed once and left untouched.
var attachTemplate = [54]byte{
	dap.CmdSWDSequence, 5,

	//    [--- 64 1s ----------------------------------]
	0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	//    [JTAG2SWD]  [- 16 1s ]  [---------------------
	0x00, 0x9E, 0xE7, 0xFF, 0xFF, 0x92, 0xF3, 0x09, 0x62,
	//    ----- Selection Alert Sequence ---------------
	0x00, 0x95, 0x2D, 0x85, 0x86, 0xE9, 0xAF, 0xDD, 0xE3,
	//    ---------------------]  [Act Code]  [---------
	0x00, 0xA2, 0x0E, 0xBC, 0x19, 0xA0, 0xF1, 0xFF, 0xFF,
	//    ----- Line Reset Sequence -------]
	0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F,

	//    WR DP TARGETSEL
	0x08, 0x99,
	//    5 bits idle
	0x85,
	//    WR VALUE:32, PARITY:1, ZEROs:7
	0x28, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// attachSingleDropLen is the number of leading bytes of attachTemplate that
// constitute the single-drop (non-multidrop) attach sequence: opcode, a
// count of 5, and the 43 bytes of JTAG-escape/alert/line-reset sequences.
const attachSingleDropLen = 45

// buildAttachCommand returns the command bytes to send for the attach
// sequence, patched for multidrop if requested.
func buildAttachCommand(flags AttachFlags, target uint32) []byte {
	if flags&Multidrop == 0 {
		cmd := make([]byte, attachSingleDropLen)
		copy(cmd, attachTemplate[:attachSingleDropLen])
		return cmd
	}

	cmd := make([]byte, len(attachTemplate))
	copy(cmd, attachTemplate[:])
	cmd[1] = 8
	cmd[49] = byte(target)
	cmd[50] = byte(target >> 8)
	cmd[51] = byte(target >> 16)
	cmd[52] = byte(target >> 24)
	cmd[53] = byte(bits.OnesCount32(target) & 1)
	return cmd
}

// Attach runs the SWD attach sequence: it sends the JTAG-to-SWD /
// dormant-wake / line-reset bit sequence (optionally patched with a
// DP.TARGETSEL write for multidrop), then issues a bare DP.IDR read and
// returns the raw IDCODE.
//
// By design, the sequence send's own USB-level result is intentionally not
// propagated: only the following queue execution's result is. This
// tolerates the deliberately-ignored TARGETSEL ACK.
func (c *Context) Attach(flags AttachFlags, target uint32) (uint32, error) {
	cmd := buildAttachCommand(flags, target)
	respLen := 2
	if flags&Multidrop != 0 {
		respLen = 3
	}
	_, _ = dap.WriteRead(c.usb, cmd, respLen)

	c.Init()
	var idcode uint32
	c.rawRead(reqByte(xferDP, xferRD, 0, 0), &idcode)
	if err := c.Exec(); err != nil {
		c.status = StatusFailed
		return 0, err
	}
	c.status = StatusAttached
	return idcode, nil
}
