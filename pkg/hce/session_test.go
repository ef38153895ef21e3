package hce

import (
	"context"
	"testing"
)

func TestSession_Transitions(t *testing.T) {
	ctx := context.Background()
	s := NewSession(nil)

	if s.State() != StateIdle {
		t.Fatalf("initial state = %s, want %s", s.State(), StateIdle)
	}

	ok, err := s.Read(ctx)
	if err != nil || ok {
		t.Fatalf("Read() in idle = (%v, %v), want (false, nil)", ok, err)
	}

	steps := []struct {
		name string
		run  func() error
		want string
	}{
		{"select", func() error { return s.Select(ctx) }, StateSelected},
		{"select again", func() error { return s.Select(ctx) }, StateSelected},
		{"read", func() error { _, err := s.Read(ctx); return err }, StateAnswering},
		{"read again", func() error { _, err := s.Read(ctx); return err }, StateAnswering},
		{"reselect", func() error { return s.Select(ctx) }, StateSelected},
		{"reset", func() error { return s.Reset(ctx) }, StateIdle},
		{"reset when idle", func() error { return s.Reset(ctx) }, StateIdle},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: unexpected error %v", step.name, err)
		}
		if s.State() != step.want {
			t.Fatalf("%s: state = %s, want %s", step.name, s.State(), step.want)
		}
	}
}
