// Package emv maps the EMV data objects exchanged with a payment application:
// the card data block an emulated card returns (PAN, cardholder name, expiry)
// and the FCI a physical card may return to SELECT.
package emv

import (
	"fmt"
	"strings"

	"github.com/gregLibert/smart-card-hce/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// FCI is the File Control Information a card may return to SELECT by AID.
// The emulated card answers SELECT with a bare 9000, so this is only seen
// when probing a physical card.
type FCI struct {
	DFName              []byte                 `tlv:"84"`
	ProprietaryTemplate FCIProprietaryTemplate `tlv:"A5"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FCIProprietaryTemplate is the content of tag 'A5'.
type FCIProprietaryTemplate struct {
	ApplicationLabel             []byte `tlv:"50" fmt:"ascii"`
	ApplicationPriorityIndicator []byte `tlv:"87" fmt:"int"`
	PDOL                         []byte `tlv:"9F38"`
	LanguagePreference           []byte `tlv:"5F2D" fmt:"ascii"`
	ApplicationPreferredName     []byte `tlv:"9F12" fmt:"ascii"`
	IssuerDiscretionaryData      []byte `tlv:"BF0C"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// ParseFCI reads a SELECT response body, with or without the '6F' wrapper.
func ParseFCI(data []byte) (*FCI, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data cannot be parsed")
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}
	if len(packets) == 1 && strings.EqualFold(packets[0].Tag, "6F") {
		packets = packets[0].TLVs
	}

	fci := &FCI{}
	if err := tlv.UnmarshalFromPackets(packets, fci); err != nil {
		return nil, fmt.Errorf("failed to map FCI: %w", err)
	}
	return fci, nil
}

// Describe reports the FCI fields, one per line.
func (f *FCI) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV FCI TEMPLATE ===")

	tlv.WriteStructFields(&sb, "FCI", f)
	tlv.WriteStructFields(&sb, "Proprietary", f.ProprietaryTemplate)

	return sb.String()
}
