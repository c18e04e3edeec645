// Package dap implements the CMSIS-DAP command framing and USB transport
// that carry Serial Wire Debug traffic to a debug probe. It provides the
// single-command layer (DAP_Info, DAP_Connect, DAP_SWD_Configure,
// DAP_TransferConfigure, DAP_SWD_Sequence) and the DAP_Transfer opcode that
// package swd's batched transfer queue frames its packets with.
package dap

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command IDs used by the SWD transport engine.
const (
	CmdInfo              = 0x00
	CmdConnect           = 0x02
	CmdTransferConfigure = 0x04
	CmdTransfer          = 0x05
	CmdSWDConfigure      = 0x13
	CmdSWDSequence       = 0x1D
)

// DAP_Info sub-indices.
const (
	InfoVendorID          = 0x01
	InfoProductID         = 0x02
	InfoSerialNum         = 0x03
	InfoFirmwareVer       = 0x04
	InfoCapabilities      = 0xF0
	InfoUARTRxBufferSize  = 0xFA
	InfoUARTTxBufferSize  = 0xFB
	InfoSWOBufferSize     = 0xFD
	InfoMaxPacketCount    = 0xFE
	InfoMaxPacketSize     = 0xFF
)

// Capability bits returned in the first byte of InfoCapabilities.
const (
	Cap0SWD                = 1 << 0
	Cap0JTAG               = 1 << 1
	Cap0SWOUART            = 1 << 2
	Cap0SWOManchester      = 1 << 3
	Cap0AtomicCommands     = 1 << 4
	Cap0TestDomainTimer    = 1 << 5
	Cap0SWOStreamingTrace  = 1 << 6
	Cap0UARTCommPort       = 1 << 7
)

// Capability bits in the second byte of InfoCapabilities.
const (
	Cap1USBComPort = 1 << 0
)

// Connection ports accepted by DAP_Connect.
const (
	PortDefault = 0x00
	PortSWD     = 0x01
	PortJTAG    = 0x02
)

// Protocol is a stateless encoder/decoder for the CMSIS-DAP single-command
// layer. It owns no I/O; callers drive it with a Carrier (see transport.go).
type Protocol struct{}

// NewProtocol constructs a Protocol. It carries no mutable state; the value
// exists so call sites read the same way as the rest of the engine's
// constructors.
func NewProtocol() *Protocol {
	return &Protocol{}
}

// EncodeInfo builds a DAP_Info command for sub-index id.
func (p *Protocol) EncodeInfo(id byte) []byte {
	return []byte{CmdInfo, id}
}

// DecodeInfo parses a DAP_Info response. minLen/maxLen bound the accepted
// payload length; violations are Protocol errors.
func (p *Protocol) DecodeInfo(resp []byte, minLen, maxLen int) ([]byte, error) {
	if len(resp) < 2 {
		return nil, newErr("info", Protocol, fmt.Errorf("short response (%d bytes)", len(resp)))
	}
	if resp[0] != CmdInfo {
		return nil, newErr("info", Unsupported, fmt.Errorf("opcode echo 0x%02X", resp[0]))
	}
	l := int(resp[1])
	if l < minLen || l > maxLen {
		return nil, newErr("info", Protocol, fmt.Errorf("payload length %d out of [%d,%d]", l, minLen, maxLen))
	}
	if len(resp) < 2+l {
		return nil, newErr("info", Protocol, fmt.Errorf("truncated payload: have %d want %d", len(resp)-2, l))
	}
	return resp[2 : 2+l], nil
}

// EncodeConnect builds a DAP_Connect command for the given port.
func (p *Protocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response. A non-zero status byte means
// the probe rejected the requested port.
func (p *Protocol) DecodeConnect(resp []byte) error {
	return p.decodeStdStatus("connect", CmdConnect, resp)
}

// EncodeSWDConfigure builds a DAP_SWD_Configure command with the given
// turnaround/data-phase configuration byte.
func (p *Protocol) EncodeSWDConfigure(cfg byte) []byte {
	return []byte{CmdSWDConfigure, cfg}
}

// DecodeSWDConfigure parses a DAP_SWD_Configure response.
func (p *Protocol) DecodeSWDConfigure(resp []byte) error {
	return p.decodeStdStatus("swd_configure", CmdSWDConfigure, resp)
}

// EncodeTransferConfigure builds a DAP_TransferConfigure command. idle,
// wait, and match are clamped silently to their wire widths.
func (p *Protocol) EncodeTransferConfigure(idle, wait, match uint32) []byte {
	if idle > 255 {
		idle = 255
	}
	if wait > 65535 {
		wait = 65535
	}
	if match > 65535 {
		match = 65535
	}
	cmd := make([]byte, 6)
	cmd[0] = CmdTransferConfigure
	cmd[1] = byte(idle)
	binary.LittleEndian.PutUint16(cmd[2:4], uint16(wait))
	binary.LittleEndian.PutUint16(cmd[4:6], uint16(match))
	return cmd
}

// DecodeTransferConfigure parses a DAP_TransferConfigure response.
func (p *Protocol) DecodeTransferConfigure(resp []byte) error {
	return p.decodeStdStatus("transfer_configure", CmdTransferConfigure, resp)
}

// decodeStdStatus handles the common two-byte [opcode, status] response
// shape shared by several configuration commands.
func (p *Protocol) decodeStdStatus(op string, wantOpcode byte, resp []byte) error {
	if len(resp) < 2 {
		return newErr(op, Protocol, fmt.Errorf("short response (%d bytes)", len(resp)))
	}
	if resp[0] != wantOpcode {
		return newErr(op, Unsupported, fmt.Errorf("opcode echo 0x%02X", resp[0]))
	}
	if resp[1] != 0 {
		return newErr(op, Remote, fmt.Errorf("probe status 0x%02X", resp[1]))
	}
	return nil
}

// EncodeSWDSequence wraps a pre-built sequence byte stream (info bytes +
// packed bit data) into a DAP_SWD_Sequence command. The caller is
// responsible for the bit-exact layout; this layer only adds the opcode and
// sequence count header.
func (p *Protocol) EncodeSWDSequence(count byte, body []byte) []byte {
	cmd := make([]byte, 2+len(body))
	cmd[0] = CmdSWDSequence
	cmd[1] = count
	copy(cmd[2:], body)
	return cmd
}
