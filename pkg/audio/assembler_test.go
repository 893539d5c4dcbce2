package audio

import (
	"bytes"
	"testing"
)

// fragment builds a payload of n bytes whose values encode their position,
// so frame boundaries can be checked byte-exactly.
func fragment(start, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(start + i)
	}
	return p
}

func TestIngest_AccumulatesUntilFrameSize(t *testing.T) {
	a := NewAssembler(25)

	if got := a.Ingest(fragment(0, 10), 0); got != nil {
		t.Fatalf("first ingest returned %d bytes, want nil (10 buffered)", len(got))
	}
	if got := a.Ingest(fragment(10, 10), 2); got != nil {
		t.Fatalf("second ingest returned %d bytes, want nil (20 buffered)", len(got))
	}

	frame := a.Ingest(fragment(20, 10), 4)
	if frame == nil {
		t.Fatal("third ingest returned nil, want a 25-byte frame (30 buffered)")
	}
	if !bytes.Equal(frame, fragment(0, 25)) {
		t.Errorf("frame = %v, want bytes 0..24 in order", frame)
	}
	if a.Buffered() != 5 {
		t.Errorf("leftover = %d bytes, want 5", a.Buffered())
	}
}

func TestIngest_LeftoverCarriesIntoNextFrame(t *testing.T) {
	a := NewAssembler(25)
	a.Ingest(fragment(0, 10), 0)
	a.Ingest(fragment(10, 10), 0)
	a.Ingest(fragment(20, 10), 0) // emits 0..24, leaves 25..29

	frame := a.Ingest(fragment(30, 20), 0)
	if frame == nil {
		t.Fatal("want a frame once leftover+20 >= 25")
	}
	if !bytes.Equal(frame, fragment(25, 25)) {
		t.Errorf("frame = %v, want bytes 25..49 in order", frame)
	}
	if a.Buffered() != 0 {
		t.Errorf("leftover = %d bytes, want 0", a.Buffered())
	}
}

func TestIngest_EmitsExactlyOneFramePerCall(t *testing.T) {
	a := NewAssembler(10)

	// One oversized fragment holds three full frames; only one may be cut.
	frame := a.Ingest(fragment(0, 35), 0)
	if frame == nil {
		t.Fatal("want a frame from oversized fragment")
	}
	if !bytes.Equal(frame, fragment(0, 10)) {
		t.Errorf("frame = %v, want bytes 0..9", frame)
	}
	if a.Buffered() != 25 {
		t.Errorf("leftover = %d bytes, want 25", a.Buffered())
	}
}

func TestIngest_GapDetection(t *testing.T) {
	a := NewAssembler(DefaultFrameSize)

	a.Ingest(make([]byte, 160), 100) // 20 ms → next expected at 120
	a.Ingest(make([]byte, 160), 120) // contiguous
	a.Ingest(make([]byte, 160), 200) // gap: 60 ms missing
	a.Ingest(make([]byte, 160), 180) // out of order

	if a.Gaps() != 2 {
		t.Errorf("gaps = %d, want 2", a.Gaps())
	}
}

func TestIngest_GapDoesNotWedgeFraming(t *testing.T) {
	a := NewAssembler(320)

	if f := a.Ingest(make([]byte, 160), 0); f != nil {
		t.Fatal("no frame expected from first fragment")
	}
	// Timestamp jumps far ahead; bytes must still count toward the frame.
	f := a.Ingest(make([]byte, 160), 5000)
	if f == nil {
		t.Fatal("assembler wedged on a timestamp gap: want a frame once 320 bytes accumulated")
	}
	if len(f) != 320 {
		t.Errorf("frame size = %d, want 320", len(f))
	}
	if a.Gaps() != 1 {
		t.Errorf("gaps = %d, want 1", a.Gaps())
	}
}

func TestNewAssembler_DefaultFrameSize(t *testing.T) {
	a := NewAssembler(0)
	if a.FrameSize() != DefaultFrameSize {
		t.Errorf("frame size = %d, want %d", a.FrameSize(), DefaultFrameSize)
	}
}
