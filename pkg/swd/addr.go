package swd

// Transfer request byte bits: bit0 selects AP vs DP, bit1 selects RD vs
// WR, bits2-3 carry the register address within the selected bank, bit4
// requests a value-match read, bit5 requests a MatchMask write.
const (
	xferAP         = 1 << 0
	xferDP         = 0
	xferRD         = 1 << 1
	xferWR         = 0
	xferValueMatch = 1 << 4
	xferMatchMask  = 1 << 5
)

// dpRegMask extracts the 2 register-select bits (bits 2-3) from an 8-bit DP
// address; they sit at the same bit positions in the transfer request byte.
const dpRegMask = 0x0C

// dpRegBanked is DP register 4 (CTRL/STAT and its banked siblings), the only
// DP register whose access depends on DP.SELECT.DPBANK.
const dpRegBanked = 0x04

// dpRegSELECT is the address of DP.SELECT itself, DP register 8.
const dpRegSELECT = 0x08

// MatchMask is a probe-side (not DP/AP) write selector.
const reqMatchMask = xferWR | xferMatchMask

// invalidDPMask / invalidAPMask are the address validity masks: any bit
// set outside the addressable fields is a caller error.
const (
	invalidDPMask uint32 = 0xFFFFFF03
	invalidAPMask uint32 = 0xFFFF0003
)

// validateDPAddr checks a DP register address: an 8-bit value of the form
// BANK:4 REG:4, with REG aligned to 4.
func validateDPAddr(addr uint32) bool {
	return addr&invalidDPMask == 0
}

// validateAPAddr checks an AP register address: AP:8 BANK:4 REG:4.
func validateAPAddr(addr uint32) bool {
	return addr&invalidAPMask == 0
}

// reqByte builds the transfer request byte for a DP or AP register access.
func reqByte(apFlag, rwFlag byte, addr uint32, extra byte) byte {
	return apFlag | rwFlag | byte(addr&dpRegMask) | extra
}
