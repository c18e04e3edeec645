package swd

import (
	"testing"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

func TestBuildAttachCommandSingleDrop(t *testing.T) {
	cmd := buildAttachCommand(0, 0)
	if len(cmd) != attachSingleDropLen {
		t.Fatalf("len(cmd) = %d, want %d", len(cmd), attachSingleDropLen)
	}
	if cmd[0] != dap.CmdSWDSequence || cmd[1] != 5 {
		t.Fatalf("header = % X, want opcode=%#x count=5", cmd[:2], dap.CmdSWDSequence)
	}
}

func TestBuildAttachCommandMultidrop(t *testing.T) {
	target := uint32(0x01002927)
	cmd := buildAttachCommand(Multidrop, target)
	if len(cmd) != 54 {
		t.Fatalf("len(cmd) = %d, want 54", len(cmd))
	}
	if cmd[1] != 8 {
		t.Fatalf("count field = %d, want 8", cmd[1])
	}
	want := []byte{0x27, 0x29, 0x00, 0x01}
	for i, b := range want {
		if cmd[49+i] != b {
			t.Fatalf("target byte %d = %#x, want %#x", i, cmd[49+i], b)
		}
	}
	// 0x01002927 has eight set bits: even count -> parity bit is 0.
	if cmd[53] != 0 {
		t.Fatalf("parity byte = %d, want 0", cmd[53])
	}
}

func TestAttachSingleDrop(t *testing.T) {
	c, m := newTestContext(t, 64)

	m.queue(dap.CmdSWDSequence, 0) // response to the sequence send; its result is ignored
	m.queue(dap.CmdTransfer, 1, rspAckOK, 0xEF, 0xBE, 0xAD, 0xDE)

	idcode, err := c.Attach(0, 0)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if idcode != 0xDEADBEEF {
		t.Fatalf("idcode = %#x, want 0xDEADBEEF", idcode)
	}
	if c.Status() != StatusAttached {
		t.Fatalf("Status = %v, want StatusAttached", c.Status())
	}

	seqWrite := m.writes[len(m.writes)-2]
	if len(seqWrite) != attachSingleDropLen {
		t.Fatalf("sequence command length = %d, want %d", len(seqWrite), attachSingleDropLen)
	}
}

func TestAttachIgnoresSequenceSendError(t *testing.T) {
	c, m := newTestContext(t, 64)

	// The DAP_SWD_Sequence write's own response read fails; WriteRead
	// returns an Io error for it, which Attach must not propagate.
	m.queueReadError()
	m.queue(dap.CmdTransfer, 1, rspAckOK, 0x01, 0x00, 0x00, 0x00)

	idcode, err := c.Attach(0, 0)
	if err != nil {
		t.Fatalf("Attach propagated the sequence-send's own error: %v", err)
	}
	if idcode != 1 {
		t.Fatalf("idcode = %d, want 1", idcode)
	}
}
