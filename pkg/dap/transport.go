package dap

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Carrier is the opaque USB carrier the transport engine is built on top of:
// one Write call frames one probe command, one Read call returns one probe
// response. Implementations are not required to be safe for concurrent use;
// the engine issues one command at a time and takes no lock around Carrier
// calls, and a swd.Context is itself not safe for concurrent use.
type Carrier interface {
	Write(data []byte) (int, error)
	Read(buf []byte) (int, error)
	Close() error
}

// probeIdentity is one candidate (VID, PID, interface) triplet tried during
// discovery, in priority order.
type probeIdentity struct {
	vid, pid uint16
	iface    int
}

// knownProbes is the bit-exact discovery order: the two documented
// CMSIS-DAP identities, tried in sequence until one opens.
var knownProbes = []probeIdentity{
	{vid: 0x1FC9, pid: 0x0143, iface: 0},
	{vid: 0x2E8A, pid: 0x000C, iface: 42},
}

const (
	defaultPacketSize = 64
	defaultTimeout    = 5 * time.Second
)

// USBCarrier is the real Carrier backed by github.com/google/gousb: claim
// the vendor-class interface, discover the bulk IN/OUT endpoints, and frame
// one write/read pair per probe command.
type USBCarrier struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration

	vid, pid uint16
}

// OpenProbe tries each known CMSIS-DAP identity in order and returns the
// first that opens successfully. If none open, it returns an Offline error.
func OpenProbe() (*USBCarrier, error) {
	var lastErr error
	for _, id := range knownProbes {
		c, err := openIdentity(id)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, newErr("open_probe", Offline, lastErr)
}

func openIdentity(id probeIdentity) (*USBCarrier, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(id.vid), gousb.ID(id.pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("VID:PID %04X:%04X: %w", id.vid, id.pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("VID:PID %04X:%04X: not found", id.vid, id.pid)
	}

	_ = dev.SetAutoDetach(true)

	c := &USBCarrier{
		ctx:        ctx,
		dev:        dev,
		packetSize: defaultPacketSize,
		timeout:    defaultTimeout,
		vid:        id.vid,
		pid:        id.pid,
	}

	if err := c.claimInterface(id.iface); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	return c, nil
}

// claimInterface finds the probe's vendor-class interface (falling back to
// the identity's documented interface number) and opens its bulk endpoints.
func (c *USBCarrier) claimInterface(fallback int) error {
	cfg, err := c.dev.Config(1)
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}

	intfNum := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		if intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = intf.Number
			break
		}
	}
	if intfNum == -1 {
		intfNum = fallback
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("claim interface %d: %w", intfNum, err)
	}
	c.intf = intf

	if err := c.findEndpoints(); err != nil {
		intf.Close()
		return err
	}
	return nil
}

func (c *USBCarrier) findEndpoints() error {
	setting := c.intf.Setting

	var outAddr, inAddr int
	for _, ep := range setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outAddr == 0 {
				outAddr = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inAddr == 0 {
				inAddr = ep.Number
				c.packetSize = ep.MaxPacketSize
			}
		}
	}
	if outAddr == 0 {
		return fmt.Errorf("bulk OUT endpoint not found")
	}
	if inAddr == 0 {
		return fmt.Errorf("bulk IN endpoint not found")
	}

	epOut, err := c.intf.OutEndpoint(outAddr)
	if err != nil {
		return fmt.Errorf("open OUT endpoint: %w", err)
	}
	c.epOut = epOut

	epIn, err := c.intf.InEndpoint(inAddr)
	if err != nil {
		return fmt.Errorf("open IN endpoint: %w", err)
	}
	c.epIn = epIn
	return nil
}

// Write sends one command packet, zero-padded to the probe's packet size.
func (c *USBCarrier) Write(data []byte) (int, error) {
	packet := make([]byte, c.packetSize)
	copy(packet, data)
	n, err := c.epOut.Write(packet)
	if err != nil {
		return 0, fmt.Errorf("USB write: %w", err)
	}
	return n, nil
}

// Read receives one response packet.
func (c *USBCarrier) Read(buf []byte) (int, error) {
	n, err := c.epIn.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("USB read: %w", err)
	}
	return n, nil
}

// PacketSize returns the negotiated USB packet size (prior to any
// CMSIS-DAP-level Max_Packet_Size clipping performed by the configurator).
func (c *USBCarrier) PacketSize() int {
	return c.packetSize
}

// SetTimeout stores d as the carrier's timeout. Write and Read do not use
// the stored value.
func (c *USBCarrier) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close releases the USB interface, device, and context.
func (c *USBCarrier) Close() error {
	if c.intf != nil {
		c.intf.Close()
		c.intf = nil
	}
	if c.dev != nil {
		c.dev.Close()
		c.dev = nil
	}
	if c.ctx != nil {
		c.ctx.Close()
		c.ctx = nil
	}
	return nil
}

// WriteRead performs one command/response transaction: write cmd, then read
// a response packet of up to respBufSize bytes.
func WriteRead(c Carrier, cmd []byte, respBufSize int) ([]byte, error) {
	if _, err := c.Write(cmd); err != nil {
		return nil, newErr("write_read", Io, err)
	}
	resp := make([]byte, respBufSize)
	n, err := c.Read(resp)
	if err != nil {
		return nil, newErr("write_read", Io, err)
	}
	return resp[:n], nil
}
