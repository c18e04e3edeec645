package swd

import (
	"fmt"
	"testing"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

// mockCarrier is an in-memory dap.Carrier for unit tests: it records every
// written frame and replays a queue of canned responses.
type mockCarrier struct {
	writes    [][]byte
	responses [][]byte
	failAt    map[int]bool
	next      int
}

func (m *mockCarrier) Write(data []byte) (int, error) {
	m.writes = append(m.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (m *mockCarrier) Read(buf []byte) (int, error) {
	if m.failAt[m.next] {
		m.next++
		return 0, fmt.Errorf("mock carrier: simulated read failure")
	}
	if m.next >= len(m.responses) {
		return 0, fmt.Errorf("mock carrier: no more queued responses")
	}
	resp := m.responses[m.next]
	m.next++
	return copy(buf, resp), nil
}

func (m *mockCarrier) Close() error { return nil }

func (m *mockCarrier) queue(resp ...byte) {
	m.responses = append(m.responses, resp)
}

// queueReadError arranges for the next not-yet-consumed Read call to fail,
// without disturbing the ordering of subsequently queued responses.
func (m *mockCarrier) queueReadError() {
	if m.failAt == nil {
		m.failAt = make(map[int]bool)
	}
	m.failAt[len(m.responses)] = true
	m.responses = append(m.responses, nil)
}

// queueConfigSequence queues the six responses the probe configurator
// expects, in order, for a probe reporting the given packet size.
func (m *mockCarrier) queueConfigSequence(packetSize uint16) {
	m.queue(dap.CmdInfo, 1, dap.Cap0SWD)
	m.queue(dap.CmdInfo, 1, 1)
	m.queue(dap.CmdInfo, 2, byte(packetSize), byte(packetSize>>8))
	m.queue(dap.CmdConnect, 0)
	m.queue(dap.CmdSWDConfigure, 0)
	m.queue(dap.CmdTransferConfigure, 0)
}

// newTestContext builds a Context against a mock probe that reports the
// given packet size and accepts the configurator handshake.
func newTestContext(t *testing.T, packetSize uint16) (*Context, *mockCarrier) {
	t.Helper()
	m := &mockCarrier{}
	m.queueConfigSequence(packetSize)
	c, err := NewContext(m)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return c, m
}
