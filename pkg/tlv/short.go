package tlv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// DecodeShort splits data written by EncodeShort. Tags follow the BER tag
// rules (a low 5 bits of 1F starts a multi-byte tag) and every length is a
// single byte, so values of 128-255 bytes read back unchanged. All packets
// are primitive.
func DecodeShort(data []byte) ([]bertlv.TLV, error) {
	var packets []bertlv.TLV
	for off := 0; off < len(data); {
		tagLen, err := shortTagLength(data[off:])
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", off, err)
		}
		tag := data[off : off+tagLen]
		off += tagLen

		if off >= len(data) {
			return nil, fmt.Errorf("tag %X: missing length", tag)
		}
		n := int(data[off])
		off++

		if off+n > len(data) {
			return nil, fmt.Errorf("tag %X: value needs %d bytes, %d left", tag, n, len(data)-off)
		}
		packets = append(packets, bertlv.TLV{
			Tag:   UpperHex(tag),
			Value: append([]byte(nil), data[off:off+n]...),
		})
		off += n
	}
	return packets, nil
}

func shortTagLength(data []byte) (int, error) {
	if data[0]&0x1F != 0x1F {
		return 1, nil
	}
	for i := 1; i < len(data); i++ {
		if data[i]&0x80 == 0 {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("truncated tag %X", data)
}

// Decode splits data written with the given length form.
func Decode(form LengthForm, data []byte) ([]bertlv.TLV, error) {
	switch form {
	case ShortLength:
		return DecodeShort(data)
	case BERLength:
		packets, err := bertlv.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("bertlv decode failed: %w", err)
		}
		return packets, nil
	default:
		return nil, fmt.Errorf("unsupported length form %s", form)
	}
}

// UnmarshalForm is Unmarshal for a block written with the given length form.
func UnmarshalForm(form LengthForm, data []byte, target interface{}) error {
	packets, err := Decode(form, data)
	if err != nil {
		return err
	}
	return UnmarshalFromPackets(packets, target)
}

// GetValueForm is GetValue for a block written with the given length form.
func GetValueForm(form LengthForm, data []byte, tag string) ([]byte, error) {
	packets, err := Decode(form, data)
	if err != nil {
		return nil, err
	}
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			return rawValue(p), nil
		}
	}
	return nil, fmt.Errorf("tag %s not found", strings.ToUpper(tag))
}
