// Package bits reads and writes single bits and bit ranges of a byte using the
// ISO/IEC 7816 numbering convention: b8 is the most significant bit, b1 the least.
package bits

// Bit returns a byte with only bit n set. Out of range positions yield 0.
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet reports whether bit n of b is 1.
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with bit n forced to 1.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with bit n forced to 0.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}

// GetRange extracts bits high..low (inclusive) of b, shifted down to bit 1.
// GetRange(0b0000_1100, 4, 3) == 3.
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// HighNibble returns bits 8..5 of b.
func HighNibble(b byte) byte {
	return GetRange(b, 8, 5)
}
