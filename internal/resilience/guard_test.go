package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	recmock "github.com/patchbay-voice/patchbay/pkg/recognition/mock"
)

var errDial = errors.New("connection refused")

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(&recmock.Provider{}, GuardConfig{})
	if g.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", g.maxFailures)
	}
	if g.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", g.resetTimeout)
	}
	if g.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", g.State())
	}
}

func TestGuard_ClosedPassesThrough(t *testing.T) {
	inner := &recmock.Provider{Session: recmock.NewSession()}
	g := NewGuard(inner, GuardConfig{})

	sess, err := g.StartStream(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil {
		t.Fatal("want a session from the inner provider")
	}
	if inner.Starts() != 1 {
		t.Errorf("inner dials = %d, want 1", inner.Starts())
	}
}

func TestGuard_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &recmock.Provider{StartErr: errDial}
	g := NewGuard(inner, GuardConfig{MaxFailures: 3})
	ctx := context.Background()

	for range 3 {
		if _, err := g.StartStream(ctx); !errors.Is(err, errDial) {
			t.Fatalf("want dial error while closed, got %v", err)
		}
	}
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", g.State())
	}

	// Open circuit fails fast without touching the inner provider.
	if _, err := g.StartStream(ctx); !errors.Is(err, ErrRecognizerUnavailable) {
		t.Errorf("want ErrRecognizerUnavailable while open, got %v", err)
	}
	if inner.Starts() != 3 {
		t.Errorf("inner dials = %d, want 3 (no dial while open)", inner.Starts())
	}
}

func TestGuard_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	inner := &recmock.Provider{StartErr: errDial}
	g := NewGuard(inner, GuardConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	if _, err := g.StartStream(ctx); err == nil {
		t.Fatal("want dial failure to trip the breaker")
	}
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	time.Sleep(20 * time.Millisecond)
	if g.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after the reset timeout", g.State())
	}

	// The recognizer recovers; the probe succeeds and closes the circuit.
	inner.StartErr = nil
	inner.Session = recmock.NewSession()
	if _, err := g.StartStream(ctx); err != nil {
		t.Fatalf("probe dial: %v", err)
	}
	if g.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probe", g.State())
	}
}

func TestGuard_HalfOpenProbeReopensOnFailure(t *testing.T) {
	inner := &recmock.Provider{StartErr: errDial}
	g := NewGuard(inner, GuardConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	g.StartStream(ctx)
	time.Sleep(20 * time.Millisecond)

	if _, err := g.StartStream(ctx); !errors.Is(err, errDial) {
		t.Fatalf("want the probe to reach the inner provider, got %v", err)
	}
	if g.State() != StateOpen {
		t.Errorf("state = %v, want re-opened after failed probe", g.State())
	}
}
