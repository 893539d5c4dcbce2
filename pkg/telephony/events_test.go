package telephony

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestParseEvent_Media(t *testing.T) {
	raw := `{
		"event": "media",
		"streamSid": "MZ0123",
		"media": {
			"track": "inbound",
			"chunk": "4",
			"timestamp": "180",
			"payload": "aGVsbG8="
		}
	}`

	ev, err := ParseEvent([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Event != EventMedia {
		t.Errorf("event = %q, want %q", ev.Event, EventMedia)
	}
	if ev.Media == nil {
		t.Fatal("media = nil, want populated")
	}

	audio, err := ev.Media.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if !bytes.Equal(audio, []byte("hello")) {
		t.Errorf("payload = %q, want %q", audio, "hello")
	}

	ts, err := ev.Media.TimestampMS()
	if err != nil {
		t.Fatalf("TimestampMS: %v", err)
	}
	if ts != 180 {
		t.Errorf("timestamp = %d, want 180", ts)
	}
}

func TestParseEvent_Start(t *testing.T) {
	raw := `{
		"event": "start",
		"streamSid": "MZ0123",
		"start": {
			"streamSid": "MZ0123",
			"callSid": "CA4567",
			"tracks": ["inbound"]
		}
	}`

	ev, err := ParseEvent([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Event != EventStart {
		t.Errorf("event = %q, want %q", ev.Event, EventStart)
	}
	if ev.Start == nil || ev.Start.CallSID != "CA4567" {
		t.Errorf("start = %+v, want callSid CA4567", ev.Start)
	}
}

func TestParseEvent_UnknownEventTypeIsNotAnError(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"mark","streamSid":"MZ0123"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Event != "mark" {
		t.Errorf("event = %q, want %q", ev.Event, "mark")
	}
	if ev.Media != nil || ev.Start != nil {
		t.Error("unknown event should leave start and media nil")
	}
}

func TestParseEvent_MalformedJSON(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"event":`)); err == nil {
		t.Fatal("want an error for malformed JSON")
	}
}

func TestDecodePayload_BadBase64(t *testing.T) {
	m := &Media{Payload: "not base64!!"}
	if _, err := m.DecodePayload(); err == nil {
		t.Fatal("want an error for invalid base64")
	}
}

func TestEncodeMedia_RoundTrip(t *testing.T) {
	frame, err := EncodeMedia("MZ0123", []byte{0xff, 0x7f, 0x00})
	if err != nil {
		t.Fatalf("EncodeMedia: %v", err)
	}

	var ev struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(frame, &ev); err != nil {
		t.Fatalf("unmarshal encoded event: %v", err)
	}
	if ev.Event != EventMedia || ev.StreamSID != "MZ0123" {
		t.Errorf("envelope = %+v, want media event for MZ0123", ev)
	}

	got, err := (&Media{Payload: ev.Media.Payload}).DecodePayload()
	if err != nil {
		t.Fatalf("decode round-tripped payload: %v", err)
	}
	if !bytes.Equal(got, []byte{0xff, 0x7f, 0x00}) {
		t.Errorf("payload = %v, want original audio bytes", got)
	}
}
