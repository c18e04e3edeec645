package swd

import "github.com/OpenTraceLab/swddap/pkg/dap"

// dpSel ensures DP.SELECT's DPBANKSEL nibble matches addr before a DP
// register access, emitting a SELECT write only when the cached value is
// stale. Only the DP register at sub-address dpRegBanked is bank
// sensitive; every other DP register access is a no-op here.
func (c *Context) dpSel(addr uint32) {
	if !validateDPAddr(addr) {
		c.qerror = newErr("dp_sel", dap.InvalidArg, nil)
		return
	}
	if addr&dpRegMask != dpRegBanked {
		return
	}

	bank := (addr >> 4) & 0xF
	sel := (c.dpSelect &^ 0xF) | bank
	if sel == c.dpSelectCache {
		return
	}
	c.dpSelectCache = sel
	c.dpSelect = sel
	c.rawWrite(reqByte(xferDP, xferWR, dpRegSELECT, 0), sel)
}

// apSel ensures DP.SELECT's APSEL/APBANKSEL fields select the requested AP
// register's bank before an AP register access. An AP access always resets
// DPBANKSEL to 0: AP operations are typically followed by DP reads that
// need bank 0 (RDBUFF, CTRL/STAT), so resetting here amortises that.
func (c *Context) apSel(addr uint32) {
	if !validateAPAddr(addr) {
		c.qerror = newErr("ap_sel", dap.InvalidArg, nil)
		return
	}

	apSelect := (addr >> 8) & 0xFF
	apBank := (addr >> 4) & 0xF
	sel := (apSelect << 24) | (apBank << 4)
	if sel == c.dpSelectCache {
		return
	}
	c.dpSelectCache = sel
	c.dpSelect = sel
	c.rawWrite(reqByte(xferDP, xferWR, dpRegSELECT, 0), sel)
}
