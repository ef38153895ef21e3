package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/iso7816"
	"github.com/gregLibert/smart-card-hce/pkg/profile"
	"github.com/gregLibert/smart-card-hce/pkg/relay"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"--transport", "ws://127.0.0.1:8080/ws", "--aid", "A0 00 00 00 03 10 10", "--tag", "40727"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	want := probeConfig{
		transport: "ws://127.0.0.1:8080/ws",
		aid:       []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10},
		pin:       "1234",
		sfi:       1,
		record:    1,
		tag:       0x9F17,
		form:      tlv.ShortLength,
	}
	if diff := cmp.Diff(want, cfg, cmp.AllowUnexported(probeConfig{})); diff != "" {
		t.Errorf("parseFlags() mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseFlags([]string{"--aid", "XYZ"}); err == nil {
		t.Error("expected error for invalid AID")
	}
	if _, err := parseFlags([]string{"--length-form", "dgi"}); err == nil {
		t.Error("expected error for unknown length form")
	}
}

func TestOpenTransport_Unknown(t *testing.T) {
	if _, _, err := openTransport("serial:/dev/ttyUSB0"); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func TestRunProbe_AgainstRelay(t *testing.T) {
	p := profile.Profile{
		CardNumber:     "4111 1111 1111 1111",
		CardholderName: "JOHN DOE",
		ExpiryDate:     "09/27",
		CardType:       "VISA",
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	srv := relay.NewServer(relay.StaticProfile(p), logger, hce.WithSelectGating())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := relay.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+relay.Path)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	cfg, _ := parseFlags(nil)
	var out bytes.Buffer
	if !runProbe(&out, iso7816.NewClient(client), cfg) {
		t.Fatalf("probe reported failures:\n%s", out.String())
	}

	report := out.String()
	for _, want := range []string{
		"Step 1: SELECT AID F0010203040506",
		"=== SELECT COMMAND REPORT ===",
		"Step 2: VERIFY (plaintext PIN)",
		"+ Data:    241234FFFFFFFFFF",
		"Step 3: READ RECORD 1 (SFI 1)",
		"=== EMV CARD DATA ===",
		`    - Card.PAN (5A): "************1111"`,
		"    - Card.Expires: 09/27",
		"Step 4: GET DATA 9F17",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("probe output missing %q:\n%s", want, report)
		}
	}
}

func TestReaderSteps_LongCardholderName(t *testing.T) {
	name := strings.Repeat("N", 200)
	p := profile.Profile{CardNumber: "4111 1111 1111 1111", CardholderName: name, ExpiryDate: "09/27"}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ts := httptest.NewServer(relay.NewServer(relay.StaticProfile(p), logger).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := relay.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+relay.Path)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	cfg, _ := parseFlags(nil)
	var out bytes.Buffer
	runProbe(&out, iso7816.NewClient(client), cfg)

	report := out.String()
	if strings.Contains(report, "Parsing Failed") {
		t.Errorf("card data with a 200-byte name should decode:\n%s", report)
	}
	if !strings.Contains(report, name) {
		t.Errorf("output missing the cardholder name:\n%s", report)
	}
}
