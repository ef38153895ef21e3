package iso7816

import (
	"testing"
)

func TestNewClass(t *testing.T) {
	tests := []struct {
		name    string
		cla     byte
		wantErr bool
		check   func(Class) bool
	}{
		{
			name:    "Reserved FF",
			cla:     0xFF,
			wantErr: true,
		},
		{
			name: "First Interindustry - Ch 0, No SM",
			cla:  0b0_0_00_0_00,
			check: func(c Class) bool {
				return !c.IsProprietary && c.Channel == 0 && c.SecureMessaging == SMNone
			},
		},
		{
			name: "First Interindustry - Ch 3, Chaining, SM Auth",
			cla:  0b0_0_11_1_11,
			check: func(c Class) bool {
				return c.IsChained && c.Channel == 3 && c.SecureMessaging == SMHeaderAuth
			},
		},
		{
			name: "Further Interindustry - Ch 19, SM, Chaining",
			cla:  0b0_1_1_1_1111,
			check: func(c Class) bool {
				return c.IsChained && c.Channel == 19 && c.SecureMessaging == SMHeaderNoProc
			},
		},
		{
			name: "Payment proprietary class 80",
			cla:  0x80,
			check: func(c Class) bool {
				return c.IsProprietary && c.Raw == 0x80
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClass(tt.cla)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClass() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !tt.check(c) {
				t.Errorf("NewClass(%08b) failed validation: %+v", tt.cla, c)
			}
		})
	}
}

func TestClass_Encode_RoundTrip(t *testing.T) {
	testCases := []byte{
		0b0_0_00_0_00,
		0b0_0_11_1_11,
		0b0_1_0_0_0000,
		0b0_1_1_1_1111,
		0x80,
	}

	for _, originalCla := range testCases {
		c := MustClass(originalCla)

		encoded, err := c.Encode()
		if err != nil {
			t.Fatalf("Failed to encode class %v: %v", c, err)
		}
		if encoded != originalCla {
			t.Errorf("Round-trip mismatch: got %08b, want %08b", encoded, originalCla)
		}
	}
}

func TestClass_Encode_Invalid(t *testing.T) {
	bad := []Class{
		{Channel: 20},
		{Channel: 5, SecureMessaging: SMHeaderAuth},
	}
	for _, c := range bad {
		if _, err := c.Encode(); err == nil {
			t.Errorf("Encode(%+v) should fail", c)
		}
	}
}

func TestClass_Verbose(t *testing.T) {
	if got := MustClass(0x80).Verbose(); got != "CLA: 0x80 | Proprietary" {
		t.Errorf("Verbose() = %q", got)
	}
	want := "CLA: 0x00 | Interindustry | Channel: 0 | SM: None | Chaining: last"
	if got := MustClass(0x00).Verbose(); got != want {
		t.Errorf("Verbose() = %q, want %q", got, want)
	}
}
