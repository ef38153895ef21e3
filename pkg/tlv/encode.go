package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// MaxShortValue is the largest value length a single length byte can carry.
const MaxShortValue = 255

// LengthForm selects how the length octet(s) of each field are written.
type LengthForm int

const (
	// ShortLength writes one length byte (0-255) for every field. Values above
	// MaxShortValue are truncated so the stream stays parseable.
	ShortLength LengthForm = iota

	// BERLength writes lengths per ISO/IEC 8825-1: one byte below 128, then
	// '81 xx' / '82 xx xx'. Readers that expect strict BER-TLV need this form
	// as soon as a value reaches 128 bytes.
	BERLength
)

func (f LengthForm) String() string {
	switch f {
	case ShortLength:
		return "short"
	case BERLength:
		return "ber"
	default:
		return fmt.Sprintf("LengthForm(%d)", int(f))
	}
}

// ParseLengthForm maps "short" / "ber" (case-insensitive) to a LengthForm.
func ParseLengthForm(s string) (LengthForm, error) {
	switch strings.ToLower(s) {
	case "", "short":
		return ShortLength, nil
	case "ber":
		return BERLength, nil
	default:
		return 0, fmt.Errorf("unknown length form %q", s)
	}
}

// Field is one primitive data object.
type Field struct {
	Tag   []byte
	Value []byte
}

// NewField builds a field from a hex tag such as "5F20".
func NewField(tagHex string, value []byte) Field {
	return Field{Tag: Hex(tagHex), Value: value}
}

// EncodeShort concatenates fields as tag ++ len ++ value with a single length byte.
// It never fails.
func EncodeShort(fields ...Field) []byte {
	size := 0
	for _, f := range fields {
		size += len(f.Tag) + 1 + min(len(f.Value), MaxShortValue)
	}

	buf := make([]byte, 0, size)
	for _, f := range fields {
		value := f.Value
		if len(value) > MaxShortValue {
			value = value[:MaxShortValue]
		}
		buf = append(buf, f.Tag...)
		buf = append(buf, byte(len(value)))
		buf = append(buf, value...)
	}
	return buf
}

// Encode concatenates fields using the requested length form.
func Encode(form LengthForm, fields ...Field) ([]byte, error) {
	switch form {
	case ShortLength:
		return EncodeShort(fields...), nil
	case BERLength:
		packets := make([]bertlv.TLV, 0, len(fields))
		for _, f := range fields {
			packets = append(packets, bertlv.TLV{
				Tag:   strings.ToUpper(hex.EncodeToString(f.Tag)),
				Value: f.Value,
			})
		}
		out, err := bertlv.Encode(packets)
		if err != nil {
			return nil, fmt.Errorf("bertlv encode failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported length form %s", form)
	}
}
