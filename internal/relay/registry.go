package relay

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultChannelBuffer is the default capacity of a relay channel. Relay
// messages are small text payloads; when a consumer stalls long enough to
// fill its buffer, further messages for it are dropped rather than blocking
// the sender. Delivery is best-effort.
const DefaultChannelBuffer = 256

// entry is one live pairing. game is present from registration; telephony is
// nil until a caller speaks the code, and is set at most once.
type entry struct {
	game       chan Message
	telephony  chan<- Message
	registered time.Time
}

// Registry maps in-use codes to their pairing entries. It is the relay's
// single point of coordination: registration by game legs, one-time telephony
// attachment by the recognition bridge, and all message forwarding serialize
// through its mutex. Operations hold the lock only for map mutations and
// non-blocking channel sends — never for network I/O.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	buffer  int
}

// NewRegistry creates an empty registry. buffer sets relay channel capacity;
// values <= 0 select [DefaultChannelBuffer].
func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}
	return &Registry{
		entries: make(map[string]*entry),
		buffer:  buffer,
	}
}

// Register creates a half-open entry for code and returns the receive side of
// its game channel. The caller must have claimed code from the [CodePool];
// an already-registered code is therefore an invariant violation, reported as
// an error rather than recovered from.
func (r *Registry) Register(code string) (<-chan Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[code]; exists {
		return nil, fmt.Errorf("relay: code %q already registered", code)
	}
	e := &entry{
		game:       make(chan Message, r.buffer),
		registered: time.Now(),
	}
	r.entries[code] = e
	return e.game, nil
}

// AttachTelephony completes the pairing for code by attaching the telephony
// leg's reverse channel. It succeeds iff the entry exists and has no
// telephony channel yet; any later attach on the same code is a no-op
// returning ok=false. This is the linearization point of a pairing.
//
// On success, waited reports how long the game session waited for its caller.
func (r *Registry) AttachTelephony(code string, ch chan<- Message) (waited time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[code]
	if !exists || e.telephony != nil {
		return 0, false
	}
	e.telephony = ch
	return time.Since(e.registered), true
}

// ForwardToGame delivers m to the game leg registered under code. It reports
// whether the message was handed to the channel; false means the entry is
// gone or the channel was full (message dropped).
func (r *Registry) ForwardToGame(code string, m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[code]
	if !exists {
		return false
	}
	select {
	case e.game <- m:
		return true
	default:
		return false
	}
}

// ForwardToTelephony delivers m to the telephony leg attached under code, if
// any. Same delivery semantics as [Registry.ForwardToGame].
func (r *Registry) ForwardToTelephony(code string, m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[code]
	if !exists || e.telephony == nil {
		return false
	}
	select {
	case e.telephony <- m:
		return true
	default:
		return false
	}
}

// Remove deletes the entry for code and closes its game channel, ending the
// game leg's writer loop. Safe to call for an absent code. The telephony
// channel is not closed here — the telephony leg owns it.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[code]
	if !exists {
		return
	}
	delete(r.entries, code)
	// All sends to e.game happen under r.mu, so closing here cannot race a
	// concurrent send.
	close(e.game)
}

// Codes returns a snapshot of registered codes still awaiting a caller, in
// ascending order. Matched codes are excluded — they are no longer candidates
// for pairing. The fixed order makes the bridge's last-match-wins scan
// deterministic.
func (r *Registry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.entries))
	for c, e := range r.entries {
		if e.telephony == nil {
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of registered codes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
