package hce

import (
	"github.com/gregLibert/smart-card-hce/pkg/emv"
	"github.com/gregLibert/smart-card-hce/pkg/iso7816"
	"github.com/gregLibert/smart-card-hce/pkg/profile"
)

// Respond builds the response APDU for a classified command. It never fails
// and never inspects the PIN carried by VERIFY.
func Respond(kind CommandKind, p profile.Profile) []byte {
	switch kind {
	case ReadRecord, GetData:
		return respondWith(kind, emv.EncodeProfile(p))
	default:
		return respondWith(kind, nil)
	}
}

// respondWith answers kind using an already encoded card data block.
func respondWith(kind CommandKind, block []byte) []byte {
	switch kind {
	case SelectAID, VerifyPIN:
		return iso7816.NewResponseAPDU(nil, iso7816.SW_NO_ERROR).Bytes()
	case ReadRecord, GetData:
		return iso7816.NewResponseAPDU(block, iso7816.SW_NO_ERROR).Bytes()
	default:
		return iso7816.NewResponseAPDU(nil, iso7816.SW_ERR_FUNC_NOT_SUPPORTED).Bytes()
	}
}
