package relay

import (
	"strconv"
	"sync"
)

// defaultUniverseSize is the size of the generated code universe when the
// configuration supplies none: codes "0" through "99".
const defaultUniverseSize = 100

// DefaultCodes returns the default code universe, "0".."99".
func DefaultCodes() []string {
	codes := make([]string, 0, defaultUniverseSize)
	for i := range defaultUniverseSize {
		codes = append(codes, strconv.Itoa(i))
	}
	return codes
}

// CodePool is the set of game codes not currently claimed by a game session.
// A code is either in the pool or registered in the [Registry], never both.
//
// All methods are safe for concurrent use. Claim and Release are the only
// mutations; both are atomic under the pool's mutex.
type CodePool struct {
	mu       sync.Mutex
	free     map[string]struct{}
	universe int
}

// NewCodePool creates a pool holding the given code universe. Duplicates are
// collapsed. An empty or nil slice falls back to [DefaultCodes].
func NewCodePool(codes []string) *CodePool {
	if len(codes) == 0 {
		codes = DefaultCodes()
	}
	free := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		free[c] = struct{}{}
	}
	return &CodePool{free: free, universe: len(free)}
}

// Claim atomically removes and returns an arbitrary code from the pool.
// It returns ok=false when the pool is exhausted — not an error condition;
// the caller must refuse its new connection instead of proceeding. No
// ordering is guaranteed among codes; they are interchangeable.
func (p *CodePool) Claim() (code string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.free {
		delete(p.free, c)
		return c, true
	}
	return "", false
}

// Release atomically returns code to the pool. The caller must not release a
// code that is still registered in the [Registry].
func (p *CodePool) Release(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[code] = struct{}{}
}

// Available returns the number of unclaimed codes.
func (p *CodePool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Universe returns the size of the configured code universe.
func (p *CodePool) Universe() int { return p.universe }
