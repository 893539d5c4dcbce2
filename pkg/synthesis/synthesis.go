// Package synthesis defines the speech-synthesis collaborator for the relay's
// reverse path: text originating on the game side, spoken into the phone call.
//
// No production Provider ships yet. The telephony leg treats the provider as
// optional — with none configured it receives game text on the reverse channel
// and logs it, which keeps the reverse relay observable and leaves the wire
// behavior unchanged until a real backend lands.
package synthesis

import "context"

// Provider converts text into call-ready audio.
type Provider interface {
	// Synthesize renders text as 8 kHz μ-law audio bytes suitable for an
	// outbound telephony media event.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
