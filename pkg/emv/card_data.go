package emv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/smart-card-hce/pkg/profile"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// EMV tags of the card data block, in emission order.
const (
	TagPAN            = "5A"
	TagCardholderName = "5F20"
	TagExpirationDate = "5F24"
)

// MaxPayload is the largest data block a short response APDU can carry
// (256 bytes less one, keeping the R-APDU within 257 bytes).
const MaxPayload = 255

var (
	// ErrFieldTooLong reports a value that does not fit a single length byte.
	ErrFieldTooLong = errors.New("card data field exceeds 255 bytes")

	// ErrPayloadTooLarge reports an encoded block that does not fit a short response.
	ErrPayloadTooLarge = errors.New("encoded card data exceeds 255 bytes")
)

// CardData is the block returned to READ RECORD and GET DATA.
type CardData struct {
	PAN            []byte `tlv:"5A" fmt:"masked"`
	CardholderName []byte `tlv:"5F20" fmt:"ascii"`
	ExpirationDate []byte `tlv:"5F24" fmt:"ascii"` // YYMM

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// NewCardData derives the block contents from a profile: the card number
// without spaces, the name verbatim and the expiry as YYMM.
func NewCardData(p profile.Profile) *CardData {
	return &CardData{
		PAN:            []byte(p.PAN()),
		CardholderName: []byte(p.CardholderName),
		ExpirationDate: []byte(p.Expiry()),
	}
}

// Fields returns the three data objects in their fixed order.
func (c *CardData) Fields() []tlv.Field {
	return []tlv.Field{
		tlv.NewField(TagPAN, c.PAN),
		tlv.NewField(TagCardholderName, c.CardholderName),
		tlv.NewField(TagExpirationDate, c.ExpirationDate),
	}
}

// Marshal encodes the block with the given length form.
func (c *CardData) Marshal(form tlv.LengthForm) ([]byte, error) {
	return tlv.Encode(form, c.Fields()...)
}

// Validate checks that the block fits a short response in the given form.
func (c *CardData) Validate(form tlv.LengthForm) error {
	for _, f := range c.Fields() {
		if len(f.Value) > tlv.MaxShortValue {
			return fmt.Errorf("tag %s is %d bytes: %w", tlv.UpperHex(f.Tag), len(f.Value), ErrFieldTooLong)
		}
	}

	block, err := c.Marshal(form)
	if err != nil {
		return err
	}
	if len(block) > MaxPayload {
		return fmt.Errorf("block is %d bytes: %w", len(block), ErrPayloadTooLarge)
	}
	return nil
}

// EncodeProfile returns 5A ++ 5F20 ++ 5F24 with single-byte lengths. It is
// pure and never fails; an oversize value is truncated to 255 bytes.
func EncodeProfile(p profile.Profile) []byte {
	return tlv.EncodeShort(NewCardData(p).Fields()...)
}

// ParseCardData decodes a card data block written with the given length
// form. Short form reads every length as one byte, so values of 128-255
// bytes come back as encoded.
func ParseCardData(data []byte, form tlv.LengthForm) (*CardData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty card data")
	}

	cd := &CardData{}
	if err := tlv.UnmarshalForm(form, data, cd); err != nil {
		return nil, fmt.Errorf("failed to map card data: %w", err)
	}
	return cd, nil
}

// Describe generates a report of the block, with the PAN masked.
func (c *CardData) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV CARD DATA ===")

	tlv.WriteStructFields(&sb, "Card", c)

	if exp := c.ExpirationDate; len(exp) == 4 {
		sb.WriteString(fmt.Sprintf("\n    - Card.Expires: %s/%s", exp[2:], exp[:2]))
	}

	return sb.String()
}
