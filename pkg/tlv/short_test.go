package tlv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moov-io/bertlv"
)

func TestDecodeShort(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
	}{
		{"Empty value", nil},
		{"127 bytes", bytes.Repeat([]byte("N"), 127)},
		{"128 bytes (length byte 80)", bytes.Repeat([]byte("N"), 128)},
		{"200 bytes (length byte C8)", bytes.Repeat([]byte("N"), 200)},
		{"255 bytes", bytes.Repeat([]byte("N"), 255)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := EncodeShort(
				NewField("5A", Hex("41 11")),
				NewField("5F20", tt.value),
				NewField("5F24", []byte("2709")),
			)

			got, err := DecodeShort(data)
			if err != nil {
				t.Fatalf("DecodeShort() error = %v", err)
			}
			want := []bertlv.TLV{
				{Tag: "5A", Value: Hex("41 11")},
				{Tag: "5F20", Value: tt.value},
				{Tag: "5F24", Value: []byte("2709")},
			}
			if diff := cmp.Diff(want, got, cmp.Comparer(bytes.Equal)); diff != "" {
				t.Errorf("DecodeShort() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeShort_Errors(t *testing.T) {
	tests := map[string][]byte{
		"Truncated tag":   Hex("5F"),
		"Missing length":  Hex("5F 20"),
		"Truncated value": Hex("5A 10 41"),
		"Long value cut":  Hex("5F 20 80 41 41"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeShort(data); err == nil {
				t.Errorf("DecodeShort(%X) expected error", data)
			}
		})
	}
}

func TestUnmarshalForm(t *testing.T) {
	type card struct {
		Name []byte `tlv:"5F20"`
	}
	name := []byte(strings.Repeat("N", 200))

	short := EncodeShort(NewField("5F20", name))
	var fromShort card
	if err := UnmarshalForm(ShortLength, short, &fromShort); err != nil {
		t.Fatalf("UnmarshalForm(short) error = %v", err)
	}
	if !bytes.Equal(fromShort.Name, name) {
		t.Errorf("short form name length = %d, want 200", len(fromShort.Name))
	}

	ber, err := Encode(BERLength, NewField("5F20", name))
	if err != nil {
		t.Fatal(err)
	}
	var fromBER card
	if err := UnmarshalForm(BERLength, ber, &fromBER); err != nil {
		t.Fatalf("UnmarshalForm(ber) error = %v", err)
	}
	if !bytes.Equal(fromBER.Name, name) {
		t.Errorf("BER name length = %d, want 200", len(fromBER.Name))
	}

	if err := UnmarshalForm(LengthForm(9), short, &fromShort); err == nil {
		t.Error("expected error for unknown length form")
	}
}

func TestGetValueForm(t *testing.T) {
	data := EncodeShort(NewField("5A", Hex("41 11")), NewField("5F20", bytes.Repeat([]byte("N"), 128)))

	got, err := GetValueForm(ShortLength, data, "5f20")
	if err != nil {
		t.Fatalf("GetValueForm() error = %v", err)
	}
	if len(got) != 128 {
		t.Errorf("value length = %d, want 128", len(got))
	}
	if _, err := GetValueForm(ShortLength, data, "5F24"); err == nil {
		t.Error("expected error for missing tag")
	}
}
