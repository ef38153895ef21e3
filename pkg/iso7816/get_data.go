package iso7816

// GET DATA (INS 'CA') retrieves a single data object. P1-P2 carry the tag:
// a one-byte tag goes in P2 with P1 = 00, a two-byte tag spans P1 P2.
// Payment applications issue it with the proprietary class '80'.

// GetData builds a case 2 GET DATA for the given tag, expecting up to 256 bytes.
func GetData(cla Class, tag uint16) *CommandAPDU {
	return NewCommandAPDU(cla, MustInstruction(INS_GET_DATA), byte(tag>>8), byte(tag), nil, MaxShortLe)
}

// DataObjectTag returns the tag addressed by a GET DATA or PUT DATA command.
func (c *CommandAPDU) DataObjectTag() uint16 {
	return uint16(c.P1)<<8 | uint16(c.P2)
}
