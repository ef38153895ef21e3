package iso7816

import (
	"fmt"

	"github.com/gregLibert/smart-card-hce/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// Bit 1 of an interindustry INS often selects the data field format:
// 0 for plain data, 1 for BER-TLV (READ RECORD 'B2' vs 'B3').
// INS values '6X' and '9X' are invalid: they collide with SW1 and with the
// T=0 procedure bytes.

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by the emulated payment application and its probe.
const (
	INS_VERIFY                InsCode = 0x20
	INS_VERIFY_BER            InsCode = 0x21
	INS_CHANGE_REFERENCE_DATA InsCode = 0x24
	INS_EXTERNAL_AUTHENTICATE InsCode = 0x82
	INS_GET_CHALLENGE         InsCode = 0x84
	INS_INTERNAL_AUTHENTICATE InsCode = 0x88
	INS_SELECT                InsCode = 0xA4
	INS_GET_PROCESSING_OPTS   InsCode = 0xA8
	INS_READ_BINARY           InsCode = 0xB0
	INS_READ_RECORD           InsCode = 0xB2
	INS_READ_RECORD_BER       InsCode = 0xB3
	INS_GET_RESPONSE          InsCode = 0xC0
	INS_GET_DATA              InsCode = 0xCA
	INS_GET_DATA_BER          InsCode = 0xCB
	INS_PUT_DATA              InsCode = 0xDA
	INS_UPDATE_RECORD         InsCode = 0xDC
)

var insNames = map[InsCode]string{
	INS_VERIFY:                "VERIFY",
	INS_VERIFY_BER:            "VERIFY (BER)",
	INS_CHANGE_REFERENCE_DATA: "CHANGE REFERENCE DATA",
	INS_EXTERNAL_AUTHENTICATE: "EXTERNAL AUTHENTICATE",
	INS_GET_CHALLENGE:         "GET CHALLENGE",
	INS_INTERNAL_AUTHENTICATE: "INTERNAL AUTHENTICATE",
	INS_SELECT:                "SELECT",
	INS_GET_PROCESSING_OPTS:   "GET PROCESSING OPTIONS",
	INS_READ_BINARY:           "READ BINARY",
	INS_READ_RECORD:           "READ RECORD",
	INS_READ_RECORD_BER:       "READ RECORD (BER)",
	INS_GET_RESPONSE:          "GET RESPONSE",
	INS_GET_DATA:              "GET DATA",
	INS_GET_DATA_BER:          "GET DATA (BER)",
	INS_PUT_DATA:              "PUT DATA",
	INS_UPDATE_RECORD:         "UPDATE RECORD",
}

// String returns the command name, or InsCode(0xXX) for codes this package does not name.
func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(0x%02X)", byte(i))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction, rejecting the reserved '6X' and '9X' values.
func NewInstruction(ins InsCode) (Instruction, error) {
	switch bits.HighNibble(byte(ins)) {
	case 0x6, 0x9:
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// MustInstruction is NewInstruction for the constants above; it panics on reserved values.
func MustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}
