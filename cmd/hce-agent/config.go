package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// debugEnv forces debug logging when set to a non-empty value.
const debugEnv = "HCE_DEBUG"

type config struct {
	profilePath string
	listen      string
	mdns        bool
	mdnsName    string
	strictAID   string
	gateSelect  bool
	lengthForm  tlv.LengthForm
	logLevel    slog.Level
	nfc         bool
	nfcDevice   string
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	fs := pflag.NewFlagSet("hce-agent", pflag.ContinueOnError)
	profilePath := fs.StringP("profile", "p", "", "card profile file (YAML or JSON)")
	listen := fs.StringP("listen", "l", ":8765", "relay listen address")
	mdns := fs.Bool("mdns", false, "advertise the relay over mDNS")
	mdnsName := fs.String("mdns-name", defaultInstanceName(), "mDNS instance name")
	strictAID := fs.String("strict-aid", "", "only answer SELECT for this 7-byte AID (hex); \"default\" uses "+tlv.UpperHex(hce.DefaultAID))
	gateSelect := fs.Bool("gate-select", false, "answer data commands only after SELECT")
	lengthForm := fs.String("length-form", "short", `TLV length encoding: "short" or "ber"`)
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	nfc := fs.Bool("nfc", false, "also emulate the card on a libnfc device")
	nfcDevice := fs.String("nfc-device", "", "libnfc connection string (empty picks the first device)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if *profilePath == "" {
		return config{}, fmt.Errorf("--profile is required")
	}

	form, err := tlv.ParseLengthForm(*lengthForm)
	if err != nil {
		return config{}, fmt.Errorf("--length-form: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return config{}, fmt.Errorf("--log-level: %w", err)
	}
	if getenv(debugEnv) != "" {
		level = slog.LevelDebug
	}

	return config{
		profilePath: *profilePath,
		listen:      *listen,
		mdns:        *mdns,
		mdnsName:    *mdnsName,
		strictAID:   *strictAID,
		gateSelect:  *gateSelect,
		lengthForm:  form,
		logLevel:    level,
		nfc:         *nfc,
		nfcDevice:   *nfcDevice,
	}, nil
}

// responderOptions translates the flags into per-session responder options.
func (c config) responderOptions() ([]hce.Option, error) {
	opts := []hce.Option{hce.WithLengthForm(c.lengthForm)}

	switch strings.ToLower(c.strictAID) {
	case "":
	case "default":
		opts = append(opts, hce.WithStrictAID(hce.DefaultAID))
	default:
		aid, err := tlv.ParseHex(c.strictAID)
		if err != nil {
			return nil, fmt.Errorf("--strict-aid: %w", err)
		}
		opts = append(opts, hce.WithStrictAID(aid))
	}

	if c.gateSelect {
		opts = append(opts, hce.WithSelectGating())
	}
	return opts, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultInstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "hce-agent"
	}
	return "hce-agent on " + host
}
