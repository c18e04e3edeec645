// Package swd implements the Serial Wire Debug transfer engine: probe
// configuration, the DP.SELECT register cache, the batched transfer queue,
// and the attach sequence, all built on top of package dap's CMSIS-DAP
// command layer.
package swd

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

// invalidMirror is the "unknown, must be resent" sentinel that Init stores
// in the DP.SELECT and MatchMask mirrors (dpSelectCache, cfgMask). The
// SELECT values dpSel/apSel compute never have bits 8-23 set, so they cannot
// equal it; an all-ones MatchMask does, and SetMask always sends that mask.
const invalidMirror uint32 = 0xFFFFFFFF

const (
	minPacketSize  = 64
	maxPacketSize  = 1024
	defaultRetries = 64
)

// Status is the coarse attach/health state of a Context, for callers and
// the CLI layer that want a quick yes/no rather than the last error Kind.
type Status int

const (
	StatusDetached Status = iota
	StatusAttached
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDetached:
		return "detached"
	case StatusAttached:
		return "attached"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Context is the debug-probe session object: it owns the USB carrier, the
// negotiated probe configuration, the DP.SELECT/MatchMask mirrors, and the
// batched transfer queue. A Context is not safe for concurrent use from
// multiple goroutines without external synchronization. mu is taken only by
// Close, so repeated or concurrent Close calls are safe; no other operation
// locks it.
type Context struct {
	usb    dap.Carrier
	proto  *dap.Protocol
	status Status

	maxPacketCount uint32
	maxPacketSize  uint32

	cfgIdle  uint32
	cfgWait  uint32
	cfgMatch uint32
	cfgMask  uint32

	dpSelect      uint32
	dpSelectCache uint32

	txBuf    [maxPacketSize]byte
	rxPtrs   [maxRxPtrs]*uint32
	txNext   int
	rxCount  int
	reqCount int
	txAvail  int
	rxAvail  int
	qerror   error

	mu sync.Mutex
}

// Capabilities reports the probe's advertised feature bits, decoded from
// DAP_Info(Capabilities), for callers that want to branch on them instead
// of only seeing configuration failures.
type Capabilities struct {
	SWD         bool
	JTAG        bool
	SWOUART     bool
	SWOManchester bool
	Atomic      bool
	TestDomainTimer bool
	SWOStreaming bool
	UARTComPort bool
	USBComPort  bool
}

func (c Capabilities) String() string {
	return fmt.Sprintf("SWD=%v JTAG=%v SWO-UART=%v SWO-Manchester=%v atomic=%v test-domain-timer=%v swo-streaming=%v uart-com=%v usb-com=%v",
		c.SWD, c.JTAG, c.SWOUART, c.SWOManchester, c.Atomic, c.TestDomainTimer, c.SWOStreaming, c.UARTComPort, c.USBComPort)
}

func decodeCapabilities(b []byte) Capabilities {
	var b0, b1 byte
	if len(b) > 0 {
		b0 = b[0]
	}
	if len(b) > 1 {
		b1 = b[1]
	}
	return Capabilities{
		SWD:             b0&dap.Cap0SWD != 0,
		JTAG:            b0&dap.Cap0JTAG != 0,
		SWOUART:         b0&dap.Cap0SWOUART != 0,
		SWOManchester:   b0&dap.Cap0SWOManchester != 0,
		Atomic:          b0&dap.Cap0AtomicCommands != 0,
		TestDomainTimer: b0&dap.Cap0TestDomainTimer != 0,
		SWOStreaming:    b0&dap.Cap0SWOStreamingTrace != 0,
		UARTComPort:     b0&dap.Cap0UARTCommPort != 0,
		USBComPort:      b1&dap.Cap1USBComPort != 0,
	}
}

// NewContext runs the probe configurator over carrier and returns a
// ready-to-use Context: it queries Capabilities and the Max_Packet_Count /
// Max_Packet_Size info, clips the packet size to maxPacketSize and the
// packet count to 256 (a size below minPacketSize or a count of 0 fails with
// Protocol), switches the probe into SWD mode, and configures the SWD
// turnaround and transfer retry counts. If either packet-limit query fails,
// the defaults (one packet of minPacketSize bytes) are kept instead.
func NewContext(carrier dap.Carrier) (*Context, error) {
	c := &Context{
		usb:            carrier,
		proto:          dap.NewProtocol(),
		maxPacketCount: 1,
		maxPacketSize:  minPacketSize,
	}
	c.Init()

	caps, err := c.queryCapabilities()
	if err != nil {
		return nil, err
	}
	if !caps.SWD {
		return nil, newErr("new_context", dap.Unsupported, fmt.Errorf("probe does not advertise SWD"))
	}

	if err := c.queryPacketLimits(); err != nil {
		return nil, err
	}

	if resp, err := dap.WriteRead(c.usb, c.proto.EncodeConnect(dap.PortSWD), 2); err != nil {
		return nil, err
	} else if err := c.proto.DecodeConnect(resp); err != nil {
		return nil, err
	}

	const swdTurnaroundOneClock = 0x00
	if resp, err := dap.WriteRead(c.usb, c.proto.EncodeSWDConfigure(swdTurnaroundOneClock), 2); err != nil {
		return nil, err
	} else if err := c.proto.DecodeSWDConfigure(resp); err != nil {
		return nil, err
	}

	c.cfgIdle, c.cfgWait, c.cfgMatch = 8, 64, 0
	if resp, err := dap.WriteRead(c.usb, c.proto.EncodeTransferConfigure(c.cfgIdle, c.cfgWait, c.cfgMatch), 2); err != nil {
		return nil, err
	} else if err := c.proto.DecodeTransferConfigure(resp); err != nil {
		return nil, err
	}

	c.status = StatusDetached
	c.Init()
	return c, nil
}

func (c *Context) queryCapabilities() (Capabilities, error) {
	resp, err := dap.WriteRead(c.usb, c.proto.EncodeInfo(dap.InfoCapabilities), 16)
	if err != nil {
		return Capabilities{}, err
	}
	payload, err := c.proto.DecodeInfo(resp, 1, 2)
	if err != nil {
		return Capabilities{}, err
	}
	return decodeCapabilities(payload), nil
}

func (c *Context) queryPacketLimits() error {
	if resp, err := dap.WriteRead(c.usb, c.proto.EncodeInfo(dap.InfoMaxPacketCount), 8); err == nil {
		if payload, err := c.proto.DecodeInfo(resp, 1, 1); err == nil && len(payload) == 1 {
			c.maxPacketCount = uint32(payload[0])
		}
	}
	if resp, err := dap.WriteRead(c.usb, c.proto.EncodeInfo(dap.InfoMaxPacketSize), 8); err == nil {
		if payload, err := c.proto.DecodeInfo(resp, 2, 2); err == nil && len(payload) == 2 {
			c.maxPacketSize = uint32(payload[0]) | uint32(payload[1])<<8
		}
	}

	if c.maxPacketCount < 1 {
		return newErr("new_context", dap.Protocol, fmt.Errorf("max packet count %d below minimum 1", c.maxPacketCount))
	}
	if c.maxPacketCount > 256 {
		c.maxPacketCount = 256
	}
	if c.maxPacketSize > maxPacketSize {
		c.maxPacketSize = maxPacketSize
	}
	if c.maxPacketSize < minPacketSize {
		return newErr("new_context", dap.Protocol, fmt.Errorf("max packet size %d below minimum %d", c.maxPacketSize, minPacketSize))
	}
	return nil
}

// SetMatchRetry updates the probe's value-match retry count, re-issuing
// TransferConfigure only when n differs from the cached value (the same
// elision rule applies to probe-side mirrors, not just DP.SELECT).
func (c *Context) SetMatchRetry(n uint32) error {
	if c.cfgMatch == n {
		return nil
	}
	resp, err := dap.WriteRead(c.usb, c.proto.EncodeTransferConfigure(c.cfgIdle, c.cfgWait, n), 2)
	if err != nil {
		return err
	}
	if err := c.proto.DecodeTransferConfigure(resp); err != nil {
		return err
	}
	c.cfgMatch = n
	return nil
}

// Status reports the Context's coarse attach state.
func (c *Context) Status() Status {
	return c.status
}

// MaxPacketSize reports the probe's DAP_Info Max_Packet_Size, clipped to
// maxPacketSize.
func (c *Context) MaxPacketSize() uint32 {
	return c.maxPacketSize
}

// MaxPacketCount reports the negotiated maximum packet count.
func (c *Context) MaxPacketCount() uint32 {
	return c.maxPacketCount
}

// Capabilities re-queries and returns the probe's advertised feature bits.
func (c *Context) Capabilities() (Capabilities, error) {
	return c.queryCapabilities()
}

// ProbeStrings holds the human-readable DAP_Info fields.
type ProbeStrings struct {
	Vendor      string
	Product     string
	SerialNum   string
	FirmwareVer string
}

// Info queries the probe's DAP_Info vendor/product/serial/firmware strings.
// A sub-index the probe doesn't implement is left blank, not an error.
func (c *Context) Info() (ProbeStrings, error) {
	var s ProbeStrings
	for _, f := range []struct {
		id  byte
		dst *string
	}{
		{dap.InfoVendorID, &s.Vendor},
		{dap.InfoProductID, &s.Product},
		{dap.InfoSerialNum, &s.SerialNum},
		{dap.InfoFirmwareVer, &s.FirmwareVer},
	} {
		resp, err := dap.WriteRead(c.usb, c.proto.EncodeInfo(f.id), int(c.maxPacketSize))
		if err != nil {
			return s, err
		}
		payload, err := c.proto.DecodeInfo(resp, 0, 255)
		if err != nil {
			return s, err
		}
		*f.dst = decodeInfoString(payload)
	}
	return s, nil
}

// decodeInfoString trims the NUL terminator CMSIS-DAP string responses
// carry, if present.
func decodeInfoString(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}

// LastError returns the latched queue error, if any, without clearing it.
// Exec clears the latch; this is for callers that want to inspect it first.
func (c *Context) LastError() error {
	return c.qerror
}

// Close releases the underlying carrier. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usb == nil {
		return nil
	}
	err := c.usb.Close()
	c.usb = nil
	return err
}
