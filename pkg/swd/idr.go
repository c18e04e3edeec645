package swd

import (
	"fmt"

	"github.com/OpenTraceLab/swddap/pkg/idcode"
)

// ParsedIDR is the decoded form of a DP.IDR read: DP.IDR shares
// its bit layout with the IEEE 1149.1 IDCODE that package idcode already
// parses, so attach reuses it rather than re-deriving the same field
// extraction.
type ParsedIDR struct {
	Raw          uint32
	Revision     uint8
	PartNo       uint16
	DesignerCode uint16
	RAO          bool
}

// ParseIDR decodes a raw DP.IDR value as returned by Attach.
func ParseIDR(raw uint32) ParsedIDR {
	ic := idcode.ParseIDCode(raw)
	return ParsedIDR{
		Raw:          ic.Raw,
		Revision:     ic.Version,
		PartNo:       ic.PartNumber,
		DesignerCode: ic.ManufacturerCode,
		RAO:          ic.HasIDCode,
	}
}

// DesignerName resolves the DP.IDR Designer field against the JEP-106 table,
// falling back to "unknown (0xNNN)" when the manufacturer is unrecognized.
func (p ParsedIDR) DesignerName() string {
	if m, ok := idcode.LookupManufacturer(p.DesignerCode); ok {
		return m.Name
	}
	return fmt.Sprintf("unknown (0x%03X)", p.DesignerCode)
}

func (p ParsedIDR) String() string {
	return fmt.Sprintf("IDR=0x%08X rev=%d partno=0x%03X designer=%s RAO=%v",
		p.Raw, p.Revision, p.PartNo, p.DesignerName(), p.RAO)
}
