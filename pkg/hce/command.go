package hce

import (
	"bytes"
	"fmt"
)

// CommandKind is the closed set of commands the emulated card understands.
type CommandKind int

const (
	Unsupported CommandKind = iota
	SelectAID
	ReadRecord
	GetData
	VerifyPIN
)

func (k CommandKind) String() string {
	switch k {
	case Unsupported:
		return "Unsupported"
	case SelectAID:
		return "SelectAID"
	case ReadRecord:
		return "ReadRecord"
	case GetData:
		return "GetData"
	case VerifyPIN:
		return "VerifyPIN"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// AIDLength is the length of the application identifier carried by SELECT.
const AIDLength = 7

// DefaultAID is the identifier the emulated application registers.
var DefaultAID = []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

var (
	selectAIDPrefix  = []byte{0x00, 0xA4, 0x04, 0x00, AIDLength}
	readRecordPrefix = []byte{0x00, 0xB2}
	getDataPrefix    = []byte{0x80, 0xCA}
	verifyPINPrefix  = []byte{0x00, 0x20, 0x00, 0x80}
)

// Classifier maps raw commands to a CommandKind. The zero value accepts
// any 7-byte AID in SELECT; a non-nil AID must match exactly.
type Classifier struct {
	AID []byte
}

// Classify inspects only the leading bytes of cmd. Rules are tried in
// order and the first match wins.
func (c Classifier) Classify(cmd []byte) CommandKind {
	switch {
	case len(cmd) >= len(selectAIDPrefix)+AIDLength && bytes.HasPrefix(cmd, selectAIDPrefix):
		if c.AID != nil && !bytes.Equal(cmd[len(selectAIDPrefix):len(selectAIDPrefix)+AIDLength], c.AID) {
			return Unsupported
		}
		return SelectAID
	case bytes.HasPrefix(cmd, readRecordPrefix):
		return ReadRecord
	case bytes.HasPrefix(cmd, getDataPrefix):
		return GetData
	case bytes.HasPrefix(cmd, verifyPINPrefix):
		return VerifyPIN
	default:
		return Unsupported
	}
}

// Classify uses a Classifier that does not check the AID.
func Classify(cmd []byte) CommandKind {
	return Classifier{}.Classify(cmd)
}
