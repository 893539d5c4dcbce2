// Package resilience protects the recognizer connection path with a circuit
// breaker.
//
// Every inbound call dials a fresh recognition stream. When the recognizer is
// down, each of those dials would wait out a full connect timeout before
// failing; [Guard] trips after a run of consecutive failures and rejects
// further calls immediately until a probe succeeds.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/patchbay-voice/patchbay/pkg/recognition"
)

// ErrRecognizerUnavailable is returned by [Guard.StartStream] while the
// breaker is open.
var ErrRecognizerUnavailable = errors.New("recognizer unavailable (circuit open)")

// State represents the current operating mode of a [Guard].
type State int

const (
	// StateClosed is the normal operating state — streams are dialed.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped. Dials are rejected with
	// [ErrRecognizerUnavailable] until the reset timeout elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the reset timeout. One
	// dial is allowed through; success closes the breaker, failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GuardConfig holds tuning knobs for a [Guard].
type GuardConfig struct {
	// MaxFailures is the number of consecutive dial failures that trips the
	// breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe. Default 30s.
	ResetTimeout time.Duration
}

// Guard wraps a [recognition.Provider] with a three-state circuit breaker on
// StartStream. Established sessions are never interfered with; only the dial
// path is guarded. Safe for concurrent use.
type Guard struct {
	inner recognition.Provider

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	maxFailures  int
	resetTimeout time.Duration
	log          *slog.Logger
}

// NewGuard wraps inner with a breaker configured by cfg. Zero-valued fields
// take the documented defaults.
func NewGuard(inner recognition.Provider, cfg GuardConfig) *Guard {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Guard{
		inner:        inner,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		log:          slog.Default(),
	}
}

// State returns the breaker's current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

// stateLocked resolves the effective state, promoting open → half-open once
// the reset timeout has elapsed. Callers must hold g.mu.
func (g *Guard) stateLocked() State {
	if g.state == StateOpen && time.Since(g.openedAt) >= g.resetTimeout {
		g.state = StateHalfOpen
		g.probing = false
	}
	return g.state
}

// StartStream dials through the breaker. While open it fails fast with
// [ErrRecognizerUnavailable]; in half-open only a single probe dial is let
// through at a time.
func (g *Guard) StartStream(ctx context.Context) (recognition.Session, error) {
	g.mu.Lock()
	switch g.stateLocked() {
	case StateOpen:
		g.mu.Unlock()
		return nil, ErrRecognizerUnavailable
	case StateHalfOpen:
		if g.probing {
			g.mu.Unlock()
			return nil, ErrRecognizerUnavailable
		}
		g.probing = true
	}
	g.mu.Unlock()

	sess, err := g.inner.StartStream(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.onFailureLocked(err)
		return nil, err
	}
	if g.state != StateClosed {
		g.log.Info("recognizer recovered, closing circuit")
	}
	g.state = StateClosed
	g.failures = 0
	g.probing = false
	return sess, nil
}

// onFailureLocked records a dial failure and trips the breaker when the
// threshold is reached. Callers must hold g.mu.
func (g *Guard) onFailureLocked(err error) {
	if g.state == StateHalfOpen {
		g.state = StateOpen
		g.openedAt = time.Now()
		g.probing = false
		g.log.Warn("recognizer probe failed, circuit re-opened", "err", err)
		return
	}
	g.failures++
	if g.failures >= g.maxFailures {
		g.state = StateOpen
		g.openedAt = time.Now()
		g.log.Warn("recognizer circuit opened",
			"consecutive_failures", g.failures,
			"reset_timeout", g.resetTimeout,
			"err", err,
		)
	}
}
