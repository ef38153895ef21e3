package hce

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gregLibert/smart-card-hce/pkg/emv"
	"github.com/gregLibert/smart-card-hce/pkg/iso7816"
	"github.com/gregLibert/smart-card-hce/pkg/profile"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// Option configures a Responder.
type Option func(*Responder) error

// WithLogger sets the logger used for per-command and lifecycle logs.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithStrictAID answers SELECT only for the given 7-byte AID.
func WithStrictAID(aid []byte) Option {
	return func(r *Responder) error {
		if len(aid) != AIDLength {
			return fmt.Errorf("AID must be %d bytes, got %d", AIDLength, len(aid))
		}
		r.classifier.AID = append([]byte(nil), aid...)
		return nil
	}
}

// WithSelectGating answers READ RECORD and GET DATA with 6A81 until the
// application has been selected on the current link.
func WithSelectGating() Option {
	return func(r *Responder) error {
		r.gated = true
		return nil
	}
}

// WithLengthForm selects how the card data block encodes its lengths.
func WithLengthForm(form tlv.LengthForm) Option {
	return func(r *Responder) error {
		if form != tlv.ShortLength && form != tlv.BERLength {
			return fmt.Errorf("unsupported length form %s", form)
		}
		r.form = form
		return nil
	}
}

// Responder answers the commands of one emulation session for one profile.
// It is driven by a single goroutine.
type Responder struct {
	profile    profile.Profile
	block      []byte
	classifier Classifier
	form       tlv.LengthForm
	gated      bool
	session    *Session
	logger     *slog.Logger
}

// NewResponder validates the profile and encodes its card data block once.
// Oversize attributes fail with emv.ErrFieldTooLong or emv.ErrPayloadTooLarge.
func NewResponder(p profile.Profile, opts ...Option) (*Responder, error) {
	r := &Responder{
		profile: p,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("invalid responder option: %w", err)
		}
	}

	cd := emv.NewCardData(p)
	if err := cd.Validate(r.form); err != nil {
		return nil, fmt.Errorf("invalid card profile: %w", err)
	}
	block, err := cd.Marshal(r.form)
	if err != nil {
		return nil, fmt.Errorf("encode card data: %w", err)
	}
	r.block = block

	if r.gated {
		r.session = NewSession(r.logger)
	}

	r.logger.Info("Loaded card data: "+p.Summary(),
		"form", r.form.String(),
		"strictAID", r.classifier.AID != nil,
		"gated", r.gated)

	return r, nil
}

// Profile returns the profile the responder answers with.
func (r *Responder) Profile() profile.Profile {
	return r.profile
}

// Process classifies one command APDU and returns its response APDU.
// It always returns a response.
func (r *Responder) Process(ctx context.Context, cmd []byte) []byte {
	kind := r.classifier.Classify(cmd)

	if r.logger.Enabled(ctx, slog.LevelDebug) {
		attrs := []any{"apdu", tlv.SpacedHex(cmd), "kind", kind.String()}
		if parsed, err := iso7816.ParseCommandAPDU(cmd); err == nil {
			attrs = append(attrs, "decoded", parsed.String())
			attrs = append(attrs, commandDetail(kind, parsed)...)
		}
		r.logger.DebugContext(ctx, "Received APDU command", attrs...)
	}

	answered := r.gate(ctx, kind)
	resp := respondWith(answered, r.block)

	r.logger.DebugContext(ctx, "Sending APDU response",
		"kind", kind.String(),
		"apdu", tlv.SpacedHex(resp))

	return resp
}

// commandDetail returns the log attributes describing what a data or
// SELECT command addresses.
func commandDetail(kind CommandKind, cmd *iso7816.CommandAPDU) []any {
	switch kind {
	case SelectAID:
		method, control, _ := cmd.Selection()
		return []any{"aid", tlv.UpperHex(cmd.Data), "select", method.String() + "/" + control.String()}
	case ReadRecord:
		return []any{"record", cmd.RecordRef().String()}
	case GetData:
		return []any{"tag", fmt.Sprintf("%04X", cmd.DataObjectTag())}
	}
	return nil
}

// gate returns the kind to answer as, downgrading data commands to
// Unsupported while the session is not selected.
func (r *Responder) gate(ctx context.Context, kind CommandKind) CommandKind {
	if r.session == nil {
		return kind
	}

	switch kind {
	case SelectAID:
		if err := r.session.Select(ctx); err != nil {
			r.logger.WarnContext(ctx, "Session transition failed", "event", EventSelect, "error", err)
		}
	case ReadRecord, GetData:
		ok, err := r.session.Read(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "Session transition failed", "event", EventRead, "error", err)
		}
		if !ok {
			r.logger.DebugContext(ctx, "Data command before SELECT", "kind", kind.String())
			return Unsupported
		}
	}
	return kind
}

// Deactivate ends the current link. A gated responder returns to idle and
// requires a new SELECT.
func (r *Responder) Deactivate(ctx context.Context, reason DeactivationReason) {
	r.logger.InfoContext(ctx, "Deactivated: "+reason.String(), "code", int(reason))

	if r.session == nil {
		return
	}
	if err := r.session.Reset(ctx); err != nil {
		r.logger.WarnContext(ctx, "Session transition failed", "event", EventDeactivate, "error", err)
	}
}

// State returns the gating state, or "" when gating is disabled.
func (r *Responder) State() string {
	if r.session == nil {
		return ""
	}
	return r.session.State()
}
