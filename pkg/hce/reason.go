package hce

import "fmt"

// DeactivationReason is the code the platform reports when a session ends.
type DeactivationReason int

const (
	LinkLoss   DeactivationReason = 0
	Deselected DeactivationReason = 1
)

func (r DeactivationReason) String() string {
	switch r {
	case LinkLoss:
		return "Link Loss"
	case Deselected:
		return "Deselected"
	default:
		return fmt.Sprintf("Unknown: %d", int(r))
	}
}

// Describe maps a raw deactivation code to its label.
func Describe(code int) string {
	return DeactivationReason(code).String()
}
