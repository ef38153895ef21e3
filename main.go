// Command smart-card-hce probes a payment card the way a terminal would:
// SELECT the application, present a PIN, then read the card data back with
// READ RECORD and GET DATA. It talks to a physical card through PC/SC or to
// an emulated card through a relay agent (see cmd/hce-agent).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ebfe/scard"
	"github.com/spf13/pflag"

	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/iso7816"
	"github.com/gregLibert/smart-card-hce/pkg/relay"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

type probeConfig struct {
	transport string
	aid       []byte
	pin       string
	sfi       uint8
	record    uint8
	tag       uint16
	form      tlv.LengthForm
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	// --- 1. Link Setup ---
	card, closeCard, err := openTransport(cfg.transport)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := closeCard.Close(); err != nil {
			log.Printf("Warning: Failed to close link: %v", err)
		}
	}()

	// --- 2. Execution Flow ---
	client := iso7816.NewClient(card)
	if !runProbe(os.Stdout, client, cfg) {
		fmt.Println("\n>> Probe Finished With Errors")
		return
	}
	fmt.Println("\n>> Probe Finished Successfully")
}

func parseFlags(args []string) (probeConfig, error) {
	fs := pflag.NewFlagSet("smart-card-hce", pflag.ContinueOnError)
	transport := fs.StringP("transport", "t", "pcsc", `card link: "pcsc", "mdns" or a relay URL (ws://host:port/ws)`)
	aid := fs.String("aid", tlv.UpperHex(hce.DefaultAID), "application identifier to SELECT (hex)")
	pin := fs.String("pin", "1234", "plaintext offline PIN presented with VERIFY")
	sfi := fs.Uint8("sfi", 1, "short file identifier for READ RECORD")
	record := fs.Uint8("record", 1, "record number for READ RECORD")
	tag := fs.Uint16("tag", 0x9F17, "data object tag for GET DATA")
	lengthForm := fs.String("length-form", "short", `TLV length encoding of the card data: "short" or "ber"`)

	if err := fs.Parse(args); err != nil {
		return probeConfig{}, err
	}

	aidBytes, err := tlv.ParseHex(*aid)
	if err != nil {
		return probeConfig{}, fmt.Errorf("--aid: %w", err)
	}
	form, err := tlv.ParseLengthForm(*lengthForm)
	if err != nil {
		return probeConfig{}, fmt.Errorf("--length-form: %w", err)
	}

	return probeConfig{
		transport: *transport,
		aid:       aidBytes,
		pin:       *pin,
		sfi:       *sfi,
		record:    *record,
		tag:       *tag,
		form:      form,
	}, nil
}

// openTransport returns the card link and what must be closed afterwards.
func openTransport(transport string) (iso7816.Transmitter, io.Closer, error) {
	switch {
	case transport == "pcsc":
		ctx, card, err := connectToCard()
		if err != nil {
			return nil, nil, err
		}
		return card, pcscCloser{ctx: ctx, card: card}, nil

	case transport == "mdns":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		url, err := relay.Discover(ctx)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf(">> Discovered relay: %s\n", url)
		return dialRelay(url)

	case strings.HasPrefix(transport, "ws://"), strings.HasPrefix(transport, "wss://"):
		return dialRelay(transport)

	default:
		return nil, nil, fmt.Errorf("unknown transport %q", transport)
	}
}

func dialRelay(url string) (iso7816.Transmitter, io.Closer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := relay.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf(">> Relay session: %s\n", client.SessionID)
	return client, relayCloser{client}, nil
}

type relayCloser struct {
	client *relay.Client
}

func (r relayCloser) Close() error {
	return r.client.Deactivate(hce.Deselected)
}

type pcscCloser struct {
	ctx  *scard.Context
	card *scard.Card
}

func (p pcscCloser) Close() error {
	if err := p.card.Disconnect(scard.LeaveCard); err != nil {
		log.Printf("Warning: Failed to disconnect card: %v", err)
	}
	return p.ctx.Release()
}

// connectToCard handles the PC/SC context establishment and reader connection.
func connectToCard() (*scard.Context, *scard.Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establishing context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		return nil, nil, fmt.Errorf("no smart card reader found")
	}

	fmt.Printf(">> Using reader: %s\n", readers[0])

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(readers[0], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		return nil, nil, fmt.Errorf("connecting to card: %w", err)
	}

	return ctx, card, nil
}
