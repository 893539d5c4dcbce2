// Package audio provides the inbound audio framing for patchbay. A telephony
// media stream delivers small, timestamped μ-law fragments (typically 20 ms /
// 160 bytes each); the recognition service wants larger fixed-size binary
// frames. The [Assembler] sits between the two: it accumulates fragment
// payloads and emits exactly one frame per ingest once enough bytes are
// buffered.
//
// An Assembler is owned by the single goroutine that reads the telephony
// connection. It is not safe for concurrent use and does not need to be.
package audio

// DefaultFrameSize is the default outbound frame size in bytes: 400 ms of
// 8 kHz μ-law audio (20 media fragments of 160 bytes).
const DefaultFrameSize = 3200

// mulawBytesPerMillisecond is the byte rate of 8-bit μ-law at 8 kHz.
const mulawBytesPerMillisecond = 8

// Assembler accumulates timestamped audio fragments and cuts them into
// fixed-size frames.
type Assembler struct {
	frameSize int
	buf       []byte

	// nextTimestamp is the expected timestamp (in milliseconds) of the next
	// fragment, derived from the previous fragment's timestamp and length.
	// Zero until the first fragment arrives.
	nextTimestamp int64

	gaps int
}

// NewAssembler creates an Assembler emitting frames of frameSize bytes.
// A frameSize <= 0 selects [DefaultFrameSize].
func NewAssembler(frameSize int) *Assembler {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &Assembler{
		frameSize: frameSize,
		buf:       make([]byte, 0, 2*frameSize),
	}
}

// Ingest appends one fragment payload to the accumulation buffer and, when at
// least one full frame's worth of bytes is buffered, removes and returns
// exactly one frame from the front of it. It returns nil when no complete
// frame is available yet; the caller must forward nothing in that case.
//
// timestamp is the fragment's position in the stream in milliseconds. A
// fragment that does not line up with the end of the previous one (missing or
// out-of-order media) is counted as a gap but still accumulated; audio is
// never dropped here.
func (a *Assembler) Ingest(payload []byte, timestamp int64) []byte {
	if a.nextTimestamp != 0 && timestamp != a.nextTimestamp {
		a.gaps++
	}
	a.nextTimestamp = timestamp + int64(len(payload))/mulawBytesPerMillisecond

	a.buf = append(a.buf, payload...)
	if len(a.buf) < a.frameSize {
		return nil
	}

	frame := make([]byte, a.frameSize)
	copy(frame, a.buf)
	rest := copy(a.buf, a.buf[a.frameSize:])
	a.buf = a.buf[:rest]
	return frame
}

// Buffered returns the number of accumulated bytes not yet emitted.
func (a *Assembler) Buffered() int { return len(a.buf) }

// Gaps returns the number of timestamp discontinuities seen so far.
func (a *Assembler) Gaps() int { return a.gaps }

// FrameSize returns the configured outbound frame size in bytes.
func (a *Assembler) FrameSize() int { return a.frameSize }
