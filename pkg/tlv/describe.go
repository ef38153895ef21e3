package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// WriteStructFields appends one report line per non-empty []byte field of s, plus one
// line per leftover packet in its []bertlv.TLV field. Lines are joined with newlines and
// no trailing newline is written; a separating newline is added if sb already holds text.
//
// The `fmt` struct tag picks the rendering of a value:
//   - "ascii":  hex followed by the printable form
//   - "int":    hex followed by the big-endian decimal value
//   - "masked": printable form with all but the last four characters replaced by '*'
//   - default:  hex only
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}

	typ := val.Type()
	var lines []string

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		switch {
		case field.Type() == reflect.TypeOf([]bertlv.TLV{}):
			for _, t := range field.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %s", prefix, strings.ToUpper(t.Tag), UpperHex(t.Value)))
			}
		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
			if field.Len() == 0 {
				continue
			}
			name := fieldType.Name
			if tag := fieldType.Tag.Get("tlv"); tag != "" {
				name = fmt.Sprintf("%s (%s)", name, tag)
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, formatByteValue(field.Bytes(), fieldType.Tag.Get("fmt"))))
		}
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func formatByteValue(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		var integer int
		for _, b := range data {
			integer = (integer << 8) | int(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, integer)
	case "masked":
		return fmt.Sprintf("%q", Mask(MakeSafeASCII(data)))
	default:
		return UpperHex(data)
	}
}

// MakeSafeASCII replaces every byte outside the printable ASCII range with '.'.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}

// Mask keeps the last four characters of s and replaces the rest with '*'.
func Mask(s string) string {
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
