// Package telephony defines the subset of the Twilio Media Streams wire
// protocol that patchbay reads and writes. Inbound frames are JSON events on
// the media-stream websocket; the two event types this relay cares about are
// "start" and "media". Anything else decodes fine and is ignored by callers.
//
// See https://www.twilio.com/docs/voice/media-streams for the full protocol.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Event type names as they appear on the wire.
const (
	EventStart = "start"
	EventMedia = "media"
)

// Event is one inbound JSON frame from the media stream. Only the fields the
// relay reads are declared; unknown event types leave Start and Media nil.
type Event struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Start     *Start `json:"start,omitempty"`
	Media     *Media `json:"media,omitempty"`
}

// Start carries the stream metadata Twilio sends once, before any media.
type Start struct {
	StreamSID  string   `json:"streamSid"`
	CallSID    string   `json:"callSid"`
	AccountSID string   `json:"accountSid"`
	Tracks     []string `json:"tracks"`
}

// Media is one fragment of call audio.
type Media struct {
	// Track is "inbound" or "outbound".
	Track string `json:"track"`

	// Chunk is a monotonically increasing fragment counter, as a string.
	Chunk string `json:"chunk"`

	// Timestamp is the fragment's offset from stream start in milliseconds,
	// as a string.
	Timestamp string `json:"timestamp"`

	// Payload is base64-encoded μ-law audio.
	Payload string `json:"payload"`
}

// ParseEvent decodes one inbound websocket frame.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("telephony: decode event: %w", err)
	}
	return ev, nil
}

// DecodePayload returns the fragment's raw μ-law bytes.
func (m *Media) DecodePayload() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("telephony: decode media payload: %w", err)
	}
	return b, nil
}

// TimestampMS returns the fragment timestamp as an integer millisecond count.
func (m *Media) TimestampMS() (int64, error) {
	ts, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telephony: parse media timestamp %q: %w", m.Timestamp, err)
	}
	return ts, nil
}

// outboundMedia is the shape of a server→Twilio media event.
type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// EncodeMedia builds an outbound media event carrying audio (raw μ-law bytes)
// for the stream identified by streamSID. Used by the reverse path to play
// synthesized speech into the call.
func EncodeMedia(streamSID string, audio []byte) ([]byte, error) {
	out := outboundMedia{Event: EventMedia, StreamSID: streamSID}
	out.Media.Payload = base64.StdEncoding.EncodeToString(audio)
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("telephony: encode media event: %w", err)
	}
	return b, nil
}
