package relay

import (
	"context"
	"log/slog"

	"github.com/patchbay-voice/patchbay/internal/observe"
	"github.com/patchbay-voice/patchbay/pkg/recognition"
)

// Archive receives pairing and transcript records for long-term storage.
// Implementations must be safe for concurrent use. A nil Archive disables
// archival.
type Archive interface {
	// RecordPairing stores the moment a caller matched code.
	RecordPairing(ctx context.Context, code string) error

	// RecordTranscript stores one final transcript relayed under code.
	RecordTranscript(ctx context.Context, code, transcript string) error
}

// Bridge consumes one telephony connection's recognition results. It starts
// unmatched; once a transcript contains a live code it completes the pairing
// by attaching the leg's reverse channel, and from then on forwards every
// transcript alternative to the matched game leg. Matched is terminal for the
// life of the connection.
//
// A Bridge is owned by the single goroutine draining the recognition session;
// it is not safe for concurrent use.
type Bridge struct {
	registry *Registry
	matcher  *Matcher
	reverse  chan<- Message
	archive  Archive
	metrics  *observe.Metrics
	log      *slog.Logger

	// code is empty while unmatched.
	code string
}

// NewBridge creates a Bridge for one telephony leg. reverse is the leg's
// private reverse channel, handed to the registry on match. archive may be
// nil.
func NewBridge(registry *Registry, matcher *Matcher, reverse chan<- Message, archive Archive, metrics *observe.Metrics) *Bridge {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Bridge{
		registry: registry,
		matcher:  matcher,
		reverse:  reverse,
		archive:  archive,
		metrics:  metrics,
		log:      slog.Default(),
	}
}

// MatchedCode returns the matched code, or "" while unmatched.
func (b *Bridge) MatchedCode() string { return b.code }

// HandleResult processes one recognition result.
func (b *Bridge) HandleResult(ctx context.Context, res recognition.Result) {
	if b.code != "" {
		b.forward(ctx, res)
		return
	}
	b.scan(ctx, res)
}

// forward relays every transcript alternative to the matched game leg.
// No deduplication or confidence filtering: the game side sees what the
// recognizer said, alternative by alternative.
func (b *Bridge) forward(ctx context.Context, res recognition.Result) {
	for _, alt := range res.Alternatives {
		if b.registry.ForwardToGame(b.code, Text(alt.Transcript)) {
			b.metrics.TranscriptsForwarded.Add(ctx, 1)
		} else {
			b.metrics.RelayDrops.Add(ctx, 1)
			b.log.Debug("transcript not delivered", "code", b.code)
		}
		if res.IsFinal && alt.Transcript != "" && b.archive != nil {
			if err := b.archive.RecordTranscript(ctx, b.code, alt.Transcript); err != nil {
				b.log.Warn("archive transcript failed", "code", b.code, "err", err)
			}
		}
	}
}

// scan looks for a live code in any transcript alternative. Alternatives and
// codes are both scanned in order, and the last match found wins. On a match
// the pairing is completed via the registry; if another caller won the race
// for the same code the attach fails and the bridge stays unmatched.
func (b *Bridge) scan(ctx context.Context, res recognition.Result) {
	codes := b.registry.Codes()
	if len(codes) == 0 {
		return
	}

	matched := ""
	for _, alt := range res.Alternatives {
		if alt.Transcript == "" {
			continue
		}
		if code, ok := b.matcher.Match(alt.Transcript, codes); ok {
			matched = code
		}
	}
	if matched == "" {
		return
	}

	waited, ok := b.registry.AttachTelephony(matched, b.reverse)
	if !ok {
		b.log.Debug("code matched but attach lost the race", "code", matched)
		return
	}

	b.code = matched
	b.metrics.PairingsCompleted.Add(ctx, 1)
	b.metrics.PairingWait.Record(ctx, waited.Seconds())
	b.log.Info("caller paired with game session", "code", matched, "waited", waited)

	if b.archive != nil {
		if err := b.archive.RecordPairing(ctx, matched); err != nil {
			b.log.Warn("archive pairing failed", "code", matched, "err", err)
		}
	}
}
