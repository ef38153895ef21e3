package hce

import (
	"context"
	"errors"
	"log/slog"

	"github.com/looplab/fsm"
)

// Session states and events of the SELECT gate.
const (
	StateIdle      = "idle"
	StateSelected  = "selected"
	StateAnswering = "answering"

	EventSelect     = "select"
	EventRead       = "read"
	EventDeactivate = "deactivate"
)

// Session tracks whether the application has been selected on the current
// link. Data commands are only answered once SELECT has been seen.
// A Session is driven by a single goroutine.
type Session struct {
	fsm *fsm.FSM
}

// NewSession starts in StateIdle. Transitions are logged at debug level.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		fsm: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: EventSelect, Src: []string{StateIdle, StateSelected, StateAnswering}, Dst: StateSelected},
				{Name: EventRead, Src: []string{StateSelected, StateAnswering}, Dst: StateAnswering},
				{Name: EventDeactivate, Src: []string{StateSelected, StateAnswering}, Dst: StateIdle},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					logger.Debug("Session state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
				},
			},
		),
	}
}

// State returns the current state name.
func (s *Session) State() string {
	return s.fsm.Current()
}

// Select records a SELECT of the application.
func (s *Session) Select(ctx context.Context) error {
	return s.fire(ctx, EventSelect)
}

// Read reports whether a data command may be answered, moving the session
// to StateAnswering when it may.
func (s *Session) Read(ctx context.Context) (bool, error) {
	if !s.fsm.Can(EventRead) {
		return false, nil
	}
	if err := s.fire(ctx, EventRead); err != nil {
		return false, err
	}
	return true, nil
}

// Reset returns the session to StateIdle.
func (s *Session) Reset(ctx context.Context) error {
	if !s.fsm.Can(EventDeactivate) {
		return nil
	}
	return s.fire(ctx, EventDeactivate)
}

// fire treats a self-transition (selected -> selected, answering -> answering)
// as success.
func (s *Session) fire(ctx context.Context, event string) error {
	err := s.fsm.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
