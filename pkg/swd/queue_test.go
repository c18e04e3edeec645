package swd

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

func TestDPReadInvalidAddrLatchesWithoutEnqueue(t *testing.T) {
	c, _ := newTestContext(t, 64)
	c.Init()

	var dst uint32
	c.DPRead(0x01, &dst) // bit 0 set: violates invalidDPMask

	if c.qerror == nil {
		t.Fatalf("expected qerror to be latched")
	}
	if !errors.Is(c.qerror, dap.InvalidArg) {
		t.Fatalf("expected InvalidArg, got %v", c.qerror)
	}
	if c.txNext != headerLen {
		t.Fatalf("txNext advanced despite invalid address: %d", c.txNext)
	}
	if c.rxCount != 0 {
		t.Fatalf("rxPtrs advanced despite invalid address: %d", c.rxCount)
	}
}

func TestAPReadInvalidAddrLatches(t *testing.T) {
	c, _ := newTestContext(t, 64)
	c.Init()

	var dst uint32
	c.APRead(0x10000, &dst) // bit 16 set: violates invalidAPMask
	if !errors.Is(c.qerror, dap.InvalidArg) {
		t.Fatalf("expected InvalidArg, got %v", c.qerror)
	}
}

func TestQErrorLatchSuppressesFurtherEnqueues(t *testing.T) {
	c, _ := newTestContext(t, 64)
	c.Init()

	var dst uint32
	c.DPRead(0x01, &dst)
	if c.qerror == nil {
		t.Fatalf("expected qerror set")
	}

	before := c.txNext
	c.DPRead(0x00, &dst)
	if c.txNext != before {
		t.Fatalf("enqueue proceeded despite latched qerror")
	}
}

func TestSelectElisionAcrossSameBankAPAccesses(t *testing.T) {
	c, m := newTestContext(t, 64)
	c.Init()

	var a, b, cc, d uint32
	c.APRead(0x00, &a)
	c.APRead(0x04, &b)
	c.APRead(0x08, &cc)
	c.APRead(0x0C, &d)

	// 1 SELECT write (5 bytes) + 4 raw reads (1 byte each) = 9 bytes.
	wantUsed := 9
	gotUsed := int(c.maxPacketSize) - headerLen - c.txAvail
	if gotUsed != wantUsed {
		t.Fatalf("tx bytes used = %d, want %d (expected exactly one SELECT write)", gotUsed, wantUsed)
	}
	if c.rxCount != 4 {
		t.Fatalf("rxCount = %d, want 4", c.rxCount)
	}

	m.queue(
		dap.CmdTransfer, 5, rspAckOK,
		0x11, 0x00, 0x00, 0x00,
		0x22, 0x00, 0x00, 0x00,
		0x33, 0x00, 0x00, 0x00,
		0x44, 0x00, 0x00, 0x00,
	)

	if err := c.Exec(); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if a != 0x11 || b != 0x22 || cc != 0x33 || d != 0x44 {
		t.Fatalf("scattered values = %#x %#x %#x %#x, want 11 22 33 44", a, b, cc, d)
	}
}

func TestRawWriteAutoFlushAtTxBudgetBoundary(t *testing.T) {
	c, m := newTestContext(t, 64) // budget 61 bytes
	c.Init()
	base := len(m.writes) // configurator handshake frames

	// First write costs 10 bytes (1 SELECT + 1 write); the next 10 same-bank
	// writes cost 5 bytes each, for 60 bytes total and 1 byte of slack.
	for i := 0; i < 11; i++ {
		c.APWrite(0x00, uint32(i))
	}
	if len(m.writes) != base {
		t.Fatalf("unexpected flush before budget exhausted: %d writes", len(m.writes)-base)
	}

	m.queue(dap.CmdTransfer, 12, rspAckOK)
	c.APWrite(0x00, 99) // doesn't fit in the remaining 1 byte: forces exactly one auto-flush
	if len(m.writes) != base+1 {
		t.Fatalf("expected exactly one auto-flush, got %d writes", len(m.writes)-base)
	}
	if c.qerror != nil {
		t.Fatalf("unexpected qerror after auto-flush: %v", c.qerror)
	}
}

func TestRawReadAutoFlushAtRxBudgetBoundary(t *testing.T) {
	c, m := newTestContext(t, 64) // rx budget 61 bytes; 15 reads = 60 bytes, 1 byte slack
	c.Init()
	base := len(m.writes) // configurator handshake frames

	dsts := make([]uint32, 16)
	for i := 0; i < 15; i++ {
		c.APRead(0x00, &dsts[i])
	}
	if len(m.writes) != base {
		t.Fatalf("unexpected flush before rx budget exhausted")
	}

	resp := []byte{dap.CmdTransfer, 16, rspAckOK}
	for i := 0; i < 15; i++ {
		resp = append(resp, 0, 0, 0, 0)
	}
	m.queue(resp...)

	c.APRead(0x00, &dsts[15])
	if len(m.writes) != base+1 {
		t.Fatalf("expected exactly one auto-flush at the 16th read, got %d writes", len(m.writes)-base)
	}
}

func TestExecWaitBecomesTimeoutThenFreshQueueSucceeds(t *testing.T) {
	c, m := newTestContext(t, 64)
	c.Init()

	var dst uint32
	c.DPRead(0x00, &dst)
	m.queue(dap.CmdTransfer, 0, rspAckWait)

	err := c.Exec()
	if !errors.Is(err, dap.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}

	c.Init()
	c.DPRead(0x00, &dst)
	m.queue(dap.CmdTransfer, 1, rspAckOK, 0xEF, 0xBE, 0xAD, 0xDE)
	if err := c.Exec(); err != nil {
		t.Fatalf("Exec on fresh queue: %v", err)
	}
	if dst != 0xDEADBEEF {
		t.Fatalf("dst = %#x, want 0xDEADBEEF", dst)
	}
}

func TestExecValueMismatchReturnsMatch(t *testing.T) {
	c, m := newTestContext(t, 64)
	c.Init()

	c.APMatch(0x00, 0x12345678)
	m.queue(dap.CmdTransfer, 0, rspAckOK|rspValueMismatch)

	if err := c.Exec(); !errors.Is(err, dap.Match) {
		t.Fatalf("expected Match, got %v", err)
	}
}

func TestSetMaskIdempotent(t *testing.T) {
	c, m := newTestContext(t, 64)
	c.Init()

	c.SetMask(0xFFFF0000)
	c.SetMask(0xFFFF0000)

	used := int(c.maxPacketSize) - headerLen - c.txAvail
	if used != 5 {
		t.Fatalf("tx bytes used = %d, want 5 (exactly one MatchMask write)", used)
	}
	_ = m
}

func TestSetMatchRetryIdempotent(t *testing.T) {
	c, m := newTestContext(t, 64)

	m.queue(dap.CmdTransferConfigure, 0)
	if err := c.SetMatchRetry(5); err != nil {
		t.Fatalf("SetMatchRetry: %v", err)
	}
	before := len(m.writes)

	if err := c.SetMatchRetry(5); err != nil {
		t.Fatalf("SetMatchRetry (repeat): %v", err)
	}
	if len(m.writes) != before {
		t.Fatalf("expected no additional TransferConfigure write, got %d new writes", len(m.writes)-before)
	}
}

func TestExecWithNoQueuedRequestsIsNoop(t *testing.T) {
	c, m := newTestContext(t, 64)
	c.Init()
	base := len(m.writes) // configurator handshake frames
	if err := c.Exec(); err != nil {
		t.Fatalf("Exec on empty queue: %v", err)
	}
	if len(m.writes) != base {
		t.Fatalf("expected no USB traffic for an empty queue, got %d writes", len(m.writes)-base)
	}
}
