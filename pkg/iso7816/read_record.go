package iso7816

import (
	"fmt"

	"github.com/gregLibert/smart-card-hce/pkg/bits"
)

// READ RECORD (INS 'B2'): P1 is a record number or identifier, P2 carries
// the SFI in b8-b4 (0 = current EF) and the addressing mode in b3-b1.

// ReadRecordMode is the b3-b1 part of P2.
type ReadRecordMode byte

const (
	RefByID_FirstOccurrence    ReadRecordMode = 0b000
	RefByID_LastOccurrence     ReadRecordMode = 0b001
	RefByID_NextOccurrence     ReadRecordMode = 0b010
	RefByID_PreviousOccurrence ReadRecordMode = 0b011

	RefByNum_ReadP1              ReadRecordMode = 0b100
	RefByNum_ReadAllFromP1       ReadRecordMode = 0b101
	RefByNum_ReadAllFromLastToP1 ReadRecordMode = 0b110
)

// ByNumber reports whether P1 is a record number rather than an identifier.
func (m ReadRecordMode) ByNumber() bool {
	return bits.IsSet(byte(m), 3)
}

func (m ReadRecordMode) String() string {
	switch m {
	case RefByID_FirstOccurrence:
		return "first id"
	case RefByID_LastOccurrence:
		return "last id"
	case RefByID_NextOccurrence:
		return "next id"
	case RefByID_PreviousOccurrence:
		return "previous id"
	case RefByNum_ReadP1:
		return "record P1"
	case RefByNum_ReadAllFromP1:
		return "all from P1"
	case RefByNum_ReadAllFromLastToP1:
		return "all from last to P1"
	default:
		return fmt.Sprintf("mode 0b%03b", byte(m))
	}
}

// RecordRef is the decoded target of a READ RECORD.
type RecordRef struct {
	SFI    byte
	Record byte
	Mode   ReadRecordMode
}

func (r RecordRef) String() string {
	file := "current EF"
	if r.SFI != 0 {
		file = fmt.Sprintf("SFI %d", r.SFI)
	}
	return fmt.Sprintf("%s, P1=%d (%s)", file, r.Record, r.Mode)
}

// NewReadRecordCommand builds a case 2 READ RECORD asking for up to 256 bytes.
func NewReadRecordCommand(cla Class, sfi byte, p1 byte, mode ReadRecordMode) *CommandAPDU {
	p2 := sfi<<3 | byte(mode)&0x07
	return NewCommandAPDU(cla, MustInstruction(INS_READ_RECORD), p1, p2, nil, MaxShortLe)
}

// ReadRecord reads record number recordNumber of the given SFI.
func ReadRecord(cla Class, sfi byte, recordNumber byte) *CommandAPDU {
	return NewReadRecordCommand(cla, sfi, recordNumber, RefByNum_ReadP1)
}

// RecordRef decodes P1-P2 of a READ RECORD.
func (c *CommandAPDU) RecordRef() RecordRef {
	return RecordRef{
		SFI:    bits.GetRange(c.P2, 8, 4),
		Record: c.P1,
		Mode:   ReadRecordMode(bits.GetRange(c.P2, 3, 1)),
	}
}
