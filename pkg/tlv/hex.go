package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings.
// Spaces are ignored so fixtures can be written as "00 A4 04 00".
// It panics on malformed input and is meant for constants and tests.
func Hex(parts ...string) []byte {
	data, err := ParseHex(strings.Join(parts, ""))
	if err != nil {
		panic(err.Error())
	}
	return data
}

// ParseHex is the error-returning variant of Hex, for untrusted input.
func ParseHex(s string) ([]byte, error) {
	clean := strings.ReplaceAll(s, " ", "")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid input '%s': %w", clean, err)
	}
	return data, nil
}

// UpperHex renders data as contiguous upper case hex, e.g. "00A40400".
func UpperHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// SpacedHex renders data as space separated upper case bytes, e.g. "00 A4 04 00".
func SpacedHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
