package iso7816

import (
	"bytes"
	"fmt"
)

// APDU structures and encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU): Header (CLA INS P1 P2) followed by an optional body.
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: Header only.
// - Case 2: Header + Le.
// - Case 3: Header + Lc + Data.
// - Case 4: Header + Lc + Data + Le.
//
// Short lengths use one byte (Lc 1..255, Le 1..256 where 00 means 256).
// Extended lengths are announced by a 00 byte followed by two length bytes.
//
// RESPONSE APDU (R-APDU): optional data followed by the mandatory trailer SW1 SW2.

// APDU limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode.
	MaxShortLc = 255

	// MaxShortLe is the maximum Ne encodable in Short Length mode (Le=00).
	MaxShortLe = 256

	// MaxExtendedLc is the maximum Nc in Extended Length mode.
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne in Extended Length mode (Le=0000).
	MaxExtendedLe = 65536

	// HeaderSize is the length of CLA INS P1 P2.
	HeaderSize = 4
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU, choosing Short or Extended encoding from
// the data length (Nc) and the expected response length (Ne).
func (c *CommandAPDU) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)

	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}
	buf.WriteByte(class)
	buf.WriteByte(byte(c.Instruction.Raw))
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	nc := len(c.Data)
	ne := c.Ne
	if nc > MaxExtendedLc || ne > MaxExtendedLe {
		return nil, fmt.Errorf("lengths out of range: Nc=%d Ne=%d", nc, ne)
	}

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if isExtended {
			buf.Write([]byte{0x00, byte(nc >> 8), byte(nc)})
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !isExtended:
			// 00 encodes 256
			buf.WriteByte(byte(ne))
		default:
			// Case 2E needs the 00 marker that Lc would otherwise provide.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			// 0000 encodes 65536
			buf.Write([]byte{byte(ne >> 8), byte(ne)})
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ParseCommandAPDU decodes raw command bytes as received by a card, covering the
// four ISO 7816-3 cases in both Short and Extended form.
func ParseCommandAPDU(raw []byte) (*CommandAPDU, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("command too short: length %d", len(raw))
	}

	cla, err := NewClass(raw[0])
	if err != nil {
		return nil, err
	}
	ins, err := NewInstruction(InsCode(raw[1]))
	if err != nil {
		return nil, err
	}
	cmd := NewCommandAPDU(cla, ins, raw[2], raw[3], nil, 0)

	body := raw[HeaderSize:]
	switch {
	case len(body) == 0:
		// Case 1
	case len(body) == 1:
		cmd.Ne = shortLe(body[0])
	case body[0] != 0x00:
		nc := int(body[0])
		switch len(body) {
		case 1 + nc:
		case 1 + nc + 1:
			cmd.Ne = shortLe(body[1+nc])
		default:
			return nil, fmt.Errorf("body length %d inconsistent with Lc=%d", len(body), nc)
		}
		cmd.Data = body[1 : 1+nc]
	case len(body) == 3:
		// Case 2E
		cmd.Ne = extendedLe(body[1], body[2])
	default:
		if len(body) < 3 {
			return nil, fmt.Errorf("truncated extended length field")
		}
		nc := int(body[1])<<8 | int(body[2])
		switch len(body) {
		case 3 + nc:
		case 3 + nc + 2:
			cmd.Ne = extendedLe(body[3+nc], body[4+nc])
		default:
			return nil, fmt.Errorf("body length %d inconsistent with extended Lc=%d", len(body), nc)
		}
		cmd.Data = body[3 : 3+nc]
	}

	return cmd, nil
}

func shortLe(b byte) int {
	if b == 0 {
		return MaxShortLe
	}
	return int(b)
}

func extendedLe(hi, lo byte) int {
	le := int(hi)<<8 | int(lo)
	if le == 0 {
		return MaxExtendedLe
	}
	return le
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// NewResponseAPDU builds a response carrying data and a status word.
func NewResponseAPDU(data []byte, sw StatusWord) *ResponseAPDU {
	return &ResponseAPDU{Data: data, Status: sw}
}

// Bytes encodes the response as Data ++ SW1 ++ SW2.
// The returned slice never aliases r.Data.
func (r *ResponseAPDU) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	return append(out, r.Status.SW1(), r.Status.SW2())
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:indexSW1],
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
