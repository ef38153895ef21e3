package iso7816

import "fmt"

// VERIFY (INS '20') presents reference data (typically a PIN) to the card.
// P1 is always 00. P2 qualifies the reference data: '80' is the EMV
// plaintext offline PIN, '88' the enciphered one.

// PINQualifier is the P2 value of a VERIFY command.
type PINQualifier byte

const (
	PlaintextPIN  PINQualifier = 0x80
	EncipheredPIN PINQualifier = 0x88
)

func (q PINQualifier) String() string {
	switch q {
	case PlaintextPIN:
		return "Plaintext PIN"
	case EncipheredPIN:
		return "Enciphered PIN"
	default:
		return fmt.Sprintf("Qualifier 0x%02X", byte(q))
	}
}

// Verify builds a case 3 VERIFY carrying the reference data as is.
func Verify(cla Class, qualifier PINQualifier, data []byte) *CommandAPDU {
	return NewCommandAPDU(cla, MustInstruction(INS_VERIFY), 0x00, byte(qualifier), data, 0)
}

// PINBlock encodes digits as an ISO 9564 format 2 block
// ('2' | length, BCD digits, padded with 'F'), the form used by EMV offline
// plaintext PIN verification.
func PINBlock(pin string) ([]byte, error) {
	if len(pin) < 4 || len(pin) > 12 {
		return nil, fmt.Errorf("PIN length %d out of range [4, 12]", len(pin))
	}

	block := []byte{0x20 | byte(len(pin)), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	for i, r := range pin {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("PIN contains non-digit %q", r)
		}
		d := byte(r - '0')
		pos := 1 + i/2
		if i%2 == 0 {
			block[pos] = d<<4 | 0x0F
		} else {
			block[pos] = block[pos]&0xF0 | d
		}
	}
	return block, nil
}
