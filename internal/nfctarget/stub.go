//go:build !libnfc

package nfctarget

// Open always fails without libnfc.
func Open(device string, uid [4]byte) (Link, error) {
	return nil, ErrUnavailable
}
