// Package mock provides test doubles for the recognition package interfaces.
//
// Use Provider to control session establishment (including forcing a connect
// failure) and Session to feed scripted recognition results while recording
// the audio frames the relay forwarded.
package mock

import (
	"context"
	"sync"

	"github.com/patchbay-voice/patchbay/pkg/recognition"
)

// Provider implements recognition.Provider.
type Provider struct {
	// Session is returned by StartStream when StartErr is nil.
	Session *Session

	// StartErr, when non-nil, is returned by StartStream to simulate an
	// unreachable recognition service.
	StartErr error

	mu     sync.Mutex
	starts int
}

// StartStream returns the configured Session or StartErr.
func (p *Provider) StartStream(_ context.Context) (recognition.Session, error) {
	p.mu.Lock()
	p.starts++
	p.mu.Unlock()
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	return p.Session, nil
}

// Starts reports how many times StartStream was called.
func (p *Provider) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// Session implements recognition.Session with scripted results.
type Session struct {
	// ResultsCh is the channel returned by Results. Tests write scripted
	// results to it and close it to end the session.
	ResultsCh chan recognition.Result

	// SendErr, when non-nil, is returned by every SendAudio call.
	SendErr error

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewSession creates a Session with a buffered results channel.
func NewSession() *Session {
	return &Session{ResultsCh: make(chan recognition.Result, 16)}
}

// SendAudio records the frame.
func (s *Session) SendAudio(frame []byte) error {
	if s.SendErr != nil {
		return s.SendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.frames = append(s.frames, cp)
	return nil
}

// Results returns the scripted results channel.
func (s *Session) Results() <-chan recognition.Result { return s.ResultsCh }

// Close marks the session closed. It does not close ResultsCh; the test owns
// that channel.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Frames returns a copy of all audio frames sent so far.
func (s *Session) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
