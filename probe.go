package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gregLibert/smart-card-hce/pkg/emv"
	"github.com/gregLibert/smart-card-hce/pkg/iso7816"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

type probeStep struct {
	title    string
	cmd      *iso7816.CommandAPDU
	describe func(sb *strings.Builder, data []byte)
}

// runProbe runs every step and reports whether all of them succeeded.
// A failing step does not stop the probe.
func runProbe(w io.Writer, client *iso7816.Client, cfg probeConfig) bool {
	cls := iso7816.MustClass(0x00)
	describeCardData := cardDataDescriber(cfg.form)

	verify := iso7816.Verify(cls, iso7816.PlaintextPIN, nil)
	if block, err := iso7816.PINBlock(cfg.pin); err == nil {
		verify.Data = block
	} else {
		fmt.Fprintf(w, ">> Warning: %v, sending raw PIN digits\n", err)
		verify.Data = []byte(cfg.pin)
	}

	steps := []probeStep{
		{
			title:    fmt.Sprintf("SELECT AID %X", cfg.aid),
			cmd:      iso7816.SelectByAID(cls, cfg.aid),
			describe: describeFCI,
		},
		{
			title: "VERIFY (plaintext PIN)",
			cmd:   verify,
		},
		{
			title:    fmt.Sprintf("READ RECORD %d (SFI %d)", cfg.record, cfg.sfi),
			cmd:      iso7816.ReadRecord(cls, cfg.sfi, cfg.record),
			describe: describeCardData,
		},
		{
			title:    fmt.Sprintf("GET DATA %04X", cfg.tag),
			cmd:      iso7816.GetData(iso7816.MustClass(0x80), cfg.tag),
			describe: describeCardData,
		},
	}

	ok := true
	for i, step := range steps {
		fmt.Fprintln(w, "\n=============================================")
		fmt.Fprintf(w, " Step %d: %s\n", i+1, step.title)
		fmt.Fprintln(w, "=============================================")

		trace, err := client.Send(step.cmd)
		if err != nil {
			fmt.Fprintf(w, "(!) Communication broken: %v\n", err)
			return false
		}

		report, err := iso7816.NewReport(trace)
		if err != nil {
			fmt.Fprintf(w, "(!) %v\n", err)
			ok = false
			continue
		}
		fmt.Fprintln(w, report.Describe(step.describe))

		if !trace.IsSuccess() {
			ok = false
		}
	}
	return ok
}

func describeFCI(sb *strings.Builder, data []byte) {
	fci, err := emv.ParseFCI(data)
	if err != nil {
		fmt.Fprintf(sb, "    - FCI Parsing Failed: %v\n", err)
		return
	}
	sb.WriteString(fci.Describe())
	sb.WriteString("\n")
}

func cardDataDescriber(form tlv.LengthForm) func(*strings.Builder, []byte) {
	return func(sb *strings.Builder, data []byte) {
		cd, err := emv.ParseCardData(data, form)
		if err != nil {
			fmt.Fprintf(sb, "    - Card Data Parsing Failed: %v\n", err)
			return
		}
		sb.WriteString(cd.Describe())
		sb.WriteString("\n")
	}
}
