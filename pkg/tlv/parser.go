// Package tlv encodes and decodes Tag-Length-Value data and maps BER-TLV
// packets onto Go structs through `tlv:"<tag hex>"` struct tags.
package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshal decodes raw BER-TLV data and maps the top level packets into target,
// which must be a non-nil pointer to a struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps already decoded packets into target.
//
// Field mapping rules:
//   - []byte fields receive the packet value (re-encoded children for constructed tags).
//   - struct or *struct fields are filled recursively from the packet children.
//   - slice fields of structs collect every occurrence of their tag.
//   - a []bertlv.TLV field tagged `tlv:",unknown"` receives every packet no other field consumed.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("target must point to a struct, got %s", v.Kind())
	}
	t := v.Type()

	consumed := make([]bool, len(packets))
	unknownIdx := -1

	for i := 0; i < v.NumField(); i++ {
		tagHex, isUnknown := fieldTag(t.Field(i))
		if isUnknown {
			unknownIdx = i
			continue
		}
		if tagHex == "" {
			continue
		}

		for idx, packet := range packets {
			if !strings.EqualFold(packet.Tag, tagHex) {
				continue
			}
			if err := assign(packet, v.Field(i)); err != nil {
				return fmt.Errorf("field %s (tag %s): %w", t.Field(i).Name, tagHex, err)
			}
			consumed[idx] = true
		}
	}

	if unknownIdx < 0 {
		return nil
	}

	var leftovers []bertlv.TLV
	for idx, packet := range packets {
		if !consumed[idx] {
			leftovers = append(leftovers, packet)
		}
	}
	if len(leftovers) > 0 && v.Field(unknownIdx).CanSet() {
		v.Field(unknownIdx).Set(reflect.ValueOf(leftovers))
	}
	return nil
}

// fieldTag returns the hex tag declared on a struct field and whether the
// field is the catch-all for unconsumed packets.
func fieldTag(f reflect.StructField) (string, bool) {
	cfg := f.Tag.Get("tlv")
	if cfg == ",unknown" || (f.Name == "Unknown" && f.Type == reflect.TypeOf([]bertlv.TLV{})) {
		return "", true
	}
	return strings.ToUpper(strings.Split(cfg, ",")[0]), false
}

func assign(packet bertlv.TLV, field reflect.Value) error {
	switch {
	case isByteSlice(field):
		field.SetBytes(rawValue(packet))
		return nil

	case field.Kind() == reflect.Slice:
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := assign(packet, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil

	case field.Kind() == reflect.Struct:
		return fillStruct(packet, field.Addr())

	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return fillStruct(packet, field)
	}

	return fmt.Errorf("unsupported field kind %s", field.Kind())
}

func fillStruct(packet bertlv.TLV, ptr reflect.Value) error {
	if len(packet.TLVs) > 0 {
		return UnmarshalFromPackets(packet.TLVs, ptr.Interface())
	}
	return Unmarshal(packet.Value, ptr.Interface())
}

// rawValue returns the value bytes of a packet, re-encoding children of constructed tags.
func rawValue(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

// GetValue scans the top level of data for tag (hex, e.g. "5F20") and returns its value.
func GetValue(data []byte, tag string) ([]byte, error) {
	packets, err := bertlv.Decode(data)
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

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
