// Package recognition defines the streaming speech-recognition interface the
// relay forwards call audio into.
//
// A Provider wraps a real-time recognition service (Deepgram in production).
// Each telephony connection opens exactly one Session: raw audio frames go in
// via SendAudio, recognition results come back on the Results channel. The
// relay's pairing bridge consumes every result — it needs all transcript
// alternatives, not just the best one, because a caller's spoken game code may
// land in any of them.
//
// Implementations must be safe for concurrent use; one goroutine sends audio
// while another drains results.
package recognition

import "context"

// Alternative is one transcription hypothesis within a result.
type Alternative struct {
	// Transcript is the transcribed text. Often empty while the caller is
	// silent; consumers must tolerate that.
	Transcript string

	// Confidence is the provider's confidence score (0.0–1.0), zero when
	// unreported.
	Confidence float64
}

// Result is one streaming recognition result covering a single audio channel.
type Result struct {
	// Alternatives holds every hypothesis the provider returned, best first.
	Alternatives []Alternative

	// IsFinal reports whether the provider has committed to this result or
	// may still revise it.
	IsFinal bool
}

// Session is an open streaming recognition session.
//
// Callers must call Close when done; failing to do so leaks the provider's
// network connection and goroutines.
type Session interface {
	// SendAudio delivers one binary audio frame to the provider. It returns
	// an error once the session is closed or the provider connection is dead,
	// which the audio-forwarding loop treats as its stop signal.
	SendAudio(frame []byte) error

	// Results returns the stream of recognition results. The channel is
	// closed when the session ends, from either side.
	Results() <-chan Result

	// Close terminates the session and flushes pending audio. Safe to call
	// more than once.
	Close() error
}

// Provider opens recognition sessions.
type Provider interface {
	// StartStream connects to the recognition service and returns a live
	// Session. The error is fatal only for the calling telephony connection,
	// never for the process.
	StartStream(ctx context.Context) (Session, error)
}
