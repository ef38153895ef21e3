//go:build libnfc

package nfctarget

import (
	"context"
	"fmt"

	"github.com/clausecker/nfc/v2"
)

// Receive timeout in milliseconds; 0 blocks.
const receiveTimeout = 0

type libnfcLink struct {
	dev    nfc.Device
	target *nfc.ISO14443aTarget
	rx     [264]byte
}

// Open claims a libnfc device ("" picks the first one) and prepares it to
// emulate an ISO 14443-4A card with the given 4-byte UID.
func Open(device string, uid [4]byte) (Link, error) {
	dev, err := nfc.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open nfc device %q: %w", device, err)
	}

	target := &nfc.ISO14443aTarget{
		Atqa:   [2]byte{0x00, 0x04},
		Sak:    0x20, // ISO 14443-4 compliant
		UIDLen: len(uid),
		Baud:   nfc.Nbr106,
	}
	copy(target.UID[:], uid[:])

	return &libnfcLink{dev: dev, target: target}, nil
}

func (l *libnfcLink) Activate(ctx context.Context) ([]byte, error) {
	n, err := l.interruptible(ctx, func() (int, error) {
		return l.dev.TargetInit(l.target, l.rx[:], 0)
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), l.rx[:n]...), nil
}

func (l *libnfcLink) Receive(ctx context.Context) ([]byte, error) {
	n, err := l.interruptible(ctx, func() (int, error) {
		return l.dev.TargetReceiveBytes(l.rx[:], receiveTimeout)
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), l.rx[:n]...), nil
}

// interruptible runs a blocking device call and aborts it once ctx is done.
// It returns only after the call has left libnfc.
func (l *libnfcLink) interruptible(ctx context.Context, call func() (int, error)) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := call()
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		l.dev.AbortCommand()
		<-done
		return 0, ctx.Err()
	case r := <-done:
		return r.n, r.err
	}
}

func (l *libnfcLink) Send(resp []byte) error {
	_, err := l.dev.TargetSendBytes(resp, receiveTimeout)
	return err
}

func (l *libnfcLink) Close() error {
	return l.dev.Close()
}
