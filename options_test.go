package fiberevent

import (
	"errors"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	if s.NumCores() != 2 {
		t.Errorf("expected 2 cores, got %d", s.NumCores())
	}
	for i := range s.NumCores() {
		c := s.Core(i)
		if c.ID() != i || c.State() != s {
			t.Errorf("core %d has wrong identity", i)
		}
		if c.metrics != nil {
			t.Error("expected metrics to be disabled by default")
		}
	}
}

func TestNew_NilOptionSkipped(t *testing.T) {
	t.Parallel()

	s := newTestState(t, nil, WithCores(3), nil, WithMetrics(true))
	if s.NumCores() != 3 {
		t.Errorf("expected 3 cores, got %d", s.NumCores())
	}
	if s.Core(2).metrics == nil {
		t.Error("expected metrics to be enabled")
	}
}

func TestNew_InvalidCores(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1, MaxCores + 1} {
		if _, err := New(WithCores(n)); err == nil {
			t.Errorf("expected error for %d cores", n)
		}
	}
}

func TestNew_OptionReturnsError(t *testing.T) {
	t.Parallel()

	want := errors.New("intentional option error")
	bad := &optionImpl{func(*stateOptions) error { return want }}
	if _, err := New(bad); !errors.Is(err, want) {
		t.Fatalf("expected option error, got %v", err)
	}
}

func TestNew_SpinLimit(t *testing.T) {
	t.Parallel()

	s := newTestState(t, WithSpinLimit(7))
	if s.lock.spins != 7 {
		t.Errorf("expected spin limit 7, got %d", s.lock.spins)
	}
}

func TestState_CloseTwice(t *testing.T) {
	t.Parallel()

	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
