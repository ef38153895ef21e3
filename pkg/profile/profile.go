// Package profile holds the card attributes an emulated card answers with.
//
// A Profile is an immutable value. Every field may be empty; an empty field
// still produces a well-formed response.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default expiry components used when the expiry date is missing or malformed.
const (
	DefaultExpiryMonth = "01"
	DefaultExpiryYear  = "99"
)

// Profile is the set of card attributes exposed by the emulated card.
type Profile struct {
	CardNumber     string `yaml:"cardNumber" json:"cardNumber"`         // may contain spaces
	CardholderName string `yaml:"cardholderName" json:"cardholderName"` // used verbatim
	ExpiryDate     string `yaml:"expiryDate" json:"expiryDate"`         // MM/YY
	CardType       string `yaml:"cardType" json:"cardType"`             // informational only
}

// Parse decodes a YAML (or JSON) profile document. Unknown keys are ignored.
func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

// Load reads and parses a profile file.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// FromMap builds a Profile from loosely typed attributes, keyed as in the
// profile document. Values that are not strings are treated as absent.
func FromMap(m map[string]any) Profile {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return Profile{
		CardNumber:     str("cardNumber"),
		CardholderName: str("cardholderName"),
		ExpiryDate:     str("expiryDate"),
		CardType:       str("cardType"),
	}
}

// PAN returns the card number with every space removed.
func (p Profile) PAN() string {
	return strings.ReplaceAll(p.CardNumber, " ", "")
}

// Expiry returns the expiry as YYMM. The date is split on '/'; an absent or
// empty month defaults to DefaultExpiryMonth, an absent or empty year to
// DefaultExpiryYear. Components beyond the second are ignored.
func (p Profile) Expiry() string {
	month, year := DefaultExpiryMonth, DefaultExpiryYear

	parts := strings.Split(p.ExpiryDate, "/")
	if parts[0] != "" {
		month = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		year = parts[1]
	}
	return year + month
}

// Summary is the one-line description logged when a session loads the profile.
func (p Profile) Summary() string {
	return fmt.Sprintf("%s card for %s", p.CardType, p.CardholderName)
}
