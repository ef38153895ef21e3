// Package nfctarget runs the emulated card on a libnfc device in target mode,
// so a physical reader can tap a PN53x dongle instead of going through the
// WebSocket relay. Hardware access needs -tags libnfc.
package nfctarget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// ErrUnavailable is returned by Open when the binary was built without libnfc.
var ErrUnavailable = errors.New("built without libnfc support (use -tags libnfc)")

// Link is one side of an ISO 14443-4 target session.
type Link interface {
	// Activate waits for a reader and returns its first command.
	Activate(ctx context.Context) ([]byte, error)
	// Receive returns the next command, or ctx.Err() once ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	Send(resp []byte) error
	// Close releases the device. Call it only after Serve has returned.
	Close() error
}

// Card is what answers the reader: typically an *hce.Responder.
type Card interface {
	Process(ctx context.Context, cmd []byte) []byte
	Deactivate(ctx context.Context, reason hce.DeactivationReason)
}

// Serve answers readers until ctx is done. newCard is called once per
// reader field activation, so each tap is a fresh session. When Serve
// returns no call on link is in flight.
func Serve(ctx context.Context, link Link, newCard func() (Card, error), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		cmd, err := link.Activate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("target activation: %w", err)
		}

		card, err := newCard()
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		logger.Info("Reader field activated")

		session(ctx, link, card, cmd, logger)
	}
}

// session answers commands until the reader leaves the field or ctx is done.
func session(ctx context.Context, link Link, card Card, first []byte, logger *slog.Logger) {
	cmd := first
	for {
		if ctx.Err() != nil {
			card.Deactivate(ctx, hce.LinkLoss)
			return
		}

		resp := card.Process(ctx, cmd)
		if err := link.Send(resp); err != nil {
			logger.Debug("Target send failed", "apdu", tlv.SpacedHex(resp), "error", err)
			card.Deactivate(ctx, hce.LinkLoss)
			return
		}

		next, err := link.Receive(ctx)
		if err != nil {
			logger.Debug("Target receive stopped", "error", err)
			card.Deactivate(ctx, hce.LinkLoss)
			return
		}
		cmd = next
	}
}
