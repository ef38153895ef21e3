package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// Report wraps the Trace of one logical command for human inspection.
type Report struct {
	Trace
}

// NewReport rejects empty traces and traces with a missing response.
func NewReport(t Trace) (*Report, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create report from empty trace")
	}
	for i, tx := range t {
		if tx.Command == nil || tx.Response == nil {
			return nil, fmt.Errorf("transaction %d is incomplete", i)
		}
	}
	return &Report{Trace: t}, nil
}

// Command returns the original command of the trace.
func (r *Report) Command() *CommandAPDU {
	return r.Trace[0].Command
}

// Describe renders the exchange: the initial request, any protocol
// auto-handling, and the final payload. payloadDescriber, when non-nil,
// is given the final payload and may append a decoded view of it.
func (r *Report) Describe(payloadDescriber func(sb *strings.Builder, data []byte)) string {
	var sb strings.Builder

	tx0 := r.Trace[0]
	cmd := tx0.Command

	sb.WriteString(fmt.Sprintf("=== %s COMMAND REPORT ===\n", cmd.Instruction.Raw))
	sb.WriteString(fmt.Sprintf("[1] Command: %s (Initial Request)\n", cmd.Instruction.Raw))
	sb.WriteString(fmt.Sprintf("    + %s\n", cmd.Class.Verbose()))
	sb.WriteString(fmt.Sprintf("    + P1/P2:   %02X %02X\n", cmd.P1, cmd.P2))
	if len(cmd.Data) > 0 {
		sb.WriteString(fmt.Sprintf("    + Data:    %X (%q)\n", cmd.Data, tlv.MakeSafeASCII(cmd.Data)))
	}
	sb.WriteString(fmt.Sprintf("    + Result:  [%s] %s\n",
		tlv.SpacedHex(tx0.Response.Status.Bytes()), outcome(tx0.Response.Status)))
	sb.WriteString("\n")

	if len(r.Trace) > 1 {
		sb.WriteString(fmt.Sprintf("[2] Protocol: Auto-handling (Sequence of %d steps)\n", len(r.Trace)))
		for _, tx := range r.Trace[1:] {
			sb.WriteString(fmt.Sprintf("    + Action:  %s Le=%d -> [%s] %s\n",
				tx.Command.Instruction.Raw, tx.Command.Ne,
				tlv.SpacedHex(tx.Response.Status.Bytes()), outcome(tx.Response.Status)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("[=] FINAL OUTCOME:\n")
	sb.WriteString(fmt.Sprintf("    - Status:  %s\n", r.Status().Verbose()))

	payload := r.Data()
	if len(payload) == 0 {
		sb.WriteString("    - No Data returned.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("    - Payload: %d bytes\n", len(payload)))
	sb.WriteString(fmt.Sprintf("      Dump:    %X\n", payload))
	if payloadDescriber != nil {
		payloadDescriber(&sb, payload)
	}

	return sb.String()
}

func outcome(sw StatusWord) string {
	switch {
	case sw == SW_NO_ERROR:
		return "[OK] SW_NO_ERROR"
	case sw.SW1() == 0x61:
		return fmt.Sprintf("[OK] %d bytes still available", sw.SW2())
	case sw.SW1() == 0x6C:
		return fmt.Sprintf("[!!] Wrong length, correct is %d", sw.SW2())
	default:
		return "[!!] " + sw.Verbose()
	}
}
