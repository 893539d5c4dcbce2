// Package mock provides a test double for the synthesis package.
package mock

import (
	"context"
	"sync"
)

// Provider implements synthesis.Provider with canned audio.
type Provider struct {
	// Audio is returned by every Synthesize call.
	Audio []byte

	// Err, when non-nil, is returned instead.
	Err error

	mu    sync.Mutex
	texts []string
}

// Synthesize records text and returns the canned audio.
func (p *Provider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// Texts returns every text passed to Synthesize so far.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
