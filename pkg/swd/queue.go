package swd

import (
	"encoding/binary"

	"github.com/OpenTraceLab/swddap/pkg/dap"
)

// maxQueuedRequests is the largest number of transfer requests one
// DAP_Transfer packet can carry: the wire count field (tx_buf[2]) is a
// single byte, so 255 is the hard ceiling regardless of packet size.
const maxQueuedRequests = 255

// maxRxPtrs is the hard cap on outstanding read-response pointers per
// batch: one 32-bit destination slot per queued read.
const maxRxPtrs = 256

// headerLen is the 3-byte DAP_Transfer header: opcode, DAP index, count.
const headerLen = 3

// Init resets the transfer queue to empty and invalidates the DP.SELECT
// and MatchMask mirrors. Every batch of enqueue-then-exec
// calls should begin with Init.
func (c *Context) Init() {
	c.clearQueue()
}

// clearQueue is the internal reset shared by Init and Exec's post-flush
// cleanup.
func (c *Context) clearQueue() {
	c.txNext = headerLen
	c.rxCount = 0
	c.reqCount = 0
	c.txAvail = int(c.maxPacketSize) - headerLen
	c.rxAvail = int(c.maxPacketSize) - headerLen
	c.qerror = nil

	c.dpSelectCache = invalidMirror
	c.cfgMask = invalidMirror

	c.txBuf[0] = dap.CmdTransfer
	c.txBuf[1] = 0 // DAP index 0, fixed for SWD
	c.txBuf[2] = 0
}

// rawRead enqueues a 1-byte read request, flushing first if the tx/rx
// budget or the 256-slot rx pointer capacity would be exceeded. req is not
// validated here: callers (DPRead/APRead) are responsible for address
// masking.
func (c *Context) rawRead(req byte, dst *uint32) {
	if c.txAvail < 1 || c.rxAvail < 4 || c.reqCount >= maxQueuedRequests || c.rxCount >= maxRxPtrs {
		if err := c.Exec(); err != nil {
			c.qerror = err
			return
		}
	}
	c.txBuf[c.txNext] = req
	c.txNext++
	c.rxPtrs[c.rxCount] = dst
	c.rxCount++
	c.reqCount++
	c.txBuf[2] = byte(c.reqCount)
	c.txAvail--
	c.rxAvail -= 4
}

// rawWrite enqueues a 5-byte write (or value-match) request, flushing
// first if the tx budget or request-count cap would be exceeded.
func (c *Context) rawWrite(req byte, val uint32) {
	if c.txAvail < 5 || c.reqCount >= maxQueuedRequests {
		if err := c.Exec(); err != nil {
			c.qerror = err
			return
		}
	}
	c.txBuf[c.txNext] = req
	binary.LittleEndian.PutUint32(c.txBuf[c.txNext+1:c.txNext+5], val)
	c.txNext += 5
	c.reqCount++
	c.txBuf[2] = byte(c.reqCount)
	c.txAvail -= 5
}

// DPRead queues a DP register read into dst, emitting a DP.SELECT write
// first if the cache says the target's bank differs. An invalid
// address latches InvalidArg without advancing the queue.
func (c *Context) DPRead(addr uint32, dst *uint32) {
	if c.qerror != nil {
		return
	}
	c.dpSel(addr)
	if c.qerror != nil {
		return
	}
	c.rawRead(reqByte(xferDP, xferRD, addr, 0), dst)
}

// DPWrite queues a DP register write.
func (c *Context) DPWrite(addr uint32, val uint32) {
	if c.qerror != nil {
		return
	}
	c.dpSel(addr)
	if c.qerror != nil {
		return
	}
	c.rawWrite(reqByte(xferDP, xferWR, addr, 0), val)
}

// APRead queues an AP register read into dst.
func (c *Context) APRead(addr uint32, dst *uint32) {
	if c.qerror != nil {
		return
	}
	c.apSel(addr)
	if c.qerror != nil {
		return
	}
	c.rawRead(reqByte(xferAP, xferRD, addr, 0), dst)
}

// APWrite queues an AP register write.
func (c *Context) APWrite(addr uint32, val uint32) {
	if c.qerror != nil {
		return
	}
	c.apSel(addr)
	if c.qerror != nil {
		return
	}
	c.rawWrite(reqByte(xferAP, xferWR, addr, 0), val)
}

// APMatch queues a value-match read of an AP register: the probe polls the
// register (up to cfgMatch retries) until the MatchMask-ed value equals
// expected, or reports Match on q_exec.
func (c *Context) APMatch(addr uint32, expected uint32) {
	if c.qerror != nil {
		return
	}
	c.apSel(addr)
	if c.qerror != nil {
		return
	}
	c.rawWrite(reqByte(xferAP, xferRD, addr, xferValueMatch), expected)
}

// DPMatch queues a value-match read of a DP register.
func (c *Context) DPMatch(addr uint32, expected uint32) {
	if c.qerror != nil {
		return
	}
	c.dpSel(addr)
	if c.qerror != nil {
		return
	}
	c.rawWrite(reqByte(xferDP, xferRD, addr, xferValueMatch), expected)
}

// SetMask queues a probe-side MatchMask write if the desired mask differs
// from the cached value.
func (c *Context) SetMask(mask uint32) {
	if c.qerror != nil {
		return
	}
	// An all-ones mask equals the invalidMirror sentinel, so it is always sent.
	if c.cfgMask == mask && mask != invalidMirror {
		return
	}
	c.cfgMask = mask
	c.rawWrite(reqMatchMask, mask)
}

// Exec flushes the queue: if qerror is latched, it is returned and the
// queue is cleared without generating USB traffic. If no requests are
// queued, Exec succeeds trivially. Otherwise it writes the packed request
// buffer, reads the DAP_Transfer response, decodes the SWD status byte,
// and scatters response words into the queued destinations. The queue is
// always left empty afterward.
func (c *Context) Exec() error {
	if c.qerror != nil {
		err := c.qerror
		c.clearQueue()
		return err
	}
	if c.txBuf[2] == 0 {
		return nil
	}

	sz := c.txNext
	if _, err := c.usb.Write(c.txBuf[:sz]); err != nil {
		c.clearQueue()
		return newErr("exec", dap.Io, err)
	}

	rxBuf := make([]byte, 1024)
	n, err := c.usb.Read(rxBuf)
	if err != nil {
		c.clearQueue()
		return newErr("exec", dap.Io, err)
	}

	if n < 3 || rxBuf[0] != dap.CmdTransfer {
		c.clearQueue()
		return newErr("exec", dap.Protocol, nil)
	}

	result := decodeStatus(rxBuf[2])
	if result == nil {
		words := (n - 3) / 4
		off := 3
		for i := 0; i < words && i < c.rxCount; i++ {
			*c.rxPtrs[i] = binary.LittleEndian.Uint32(rxBuf[off : off+4])
			off += 4
		}
	}

	c.clearQueue()
	return result
}
