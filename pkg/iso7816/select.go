package iso7816

import (
	"fmt"

	"github.com/gregLibert/smart-card-hce/pkg/bits"
)

// SELECT (INS 'A4'): P1 names the selection method, P2 packs the requested
// answer (b4-b3) and the occurrence (b2-b1). Payment terminals open the
// application with P1 = 04 (DF name) and P2 = 00 (first occurrence, FCI).

// SelectionMethod is the P1 byte of a SELECT.
type SelectionMethod byte

const (
	SelectByFileID          SelectionMethod = 0x00
	SelectChildDF           SelectionMethod = 0x01
	SelectEFUnderCurrentDF  SelectionMethod = 0x02
	SelectParentDF          SelectionMethod = 0x03
	SelectByDFName          SelectionMethod = 0x04
	SelectPathFromMF        SelectionMethod = 0x08
	SelectPathFromCurrentDF SelectionMethod = 0x09
)

var selectionMethodNames = map[SelectionMethod]string{
	SelectByFileID:          "by file ID",
	SelectChildDF:           "child DF",
	SelectEFUnderCurrentDF:  "EF under current DF",
	SelectParentDF:          "parent DF",
	SelectByDFName:          "by DF name",
	SelectPathFromMF:        "path from MF",
	SelectPathFromCurrentDF: "path from current DF",
}

func (s SelectionMethod) String() string {
	if name, ok := selectionMethodNames[s]; ok {
		return name
	}
	return fmt.Sprintf("method 0x%02X", byte(s))
}

// FileOccurrence is carried in b2-b1 of P2.
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = iota
	LastOccurrence
	NextOccurrence
	PreviousOccurrence
)

func (f FileOccurrence) String() string {
	return [...]string{"first", "last", "next", "previous"}[f&0x03]
}

// SelectionControl is carried in b4-b3 of P2, already shifted into place.
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0x00
	ReturnFCP    SelectionControl = 0x04
	ReturnFMD    SelectionControl = 0x08
	ReturnNoData SelectionControl = 0x0C
)

func (s SelectionControl) String() string {
	return [...]string{"FCI", "FCP", "FMD", "no data"}[(s>>2)&0x03]
}

// NewSelectCommand builds a SELECT. A body-less SELECT that expects an
// answer is case 2; one that carries a name or path is sent as case 3 and
// the card announces its answer with 61XX.
func NewSelectCommand(cla Class, method SelectionMethod, occurrence FileOccurrence, ctrl SelectionControl, data []byte) *CommandAPDU {
	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	p2 := byte(ctrl&0x0C) | byte(occurrence&0x03)
	return NewCommandAPDU(cla, MustInstruction(INS_SELECT), byte(method), p2, data, ne)
}

// SelectByAID selects an application by its name (AID), asking for the FCI.
// An emulated payment card answers this with 9000 and an empty body.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, FirstOrOnlyOccurrence, ReturnFCI, aid)
}

// Selection decodes P1-P2 of a SELECT.
func (c *CommandAPDU) Selection() (SelectionMethod, SelectionControl, FileOccurrence) {
	return SelectionMethod(c.P1),
		SelectionControl(bits.GetRange(c.P2, 4, 3) << 2),
		FileOccurrence(bits.GetRange(c.P2, 2, 1))
}
