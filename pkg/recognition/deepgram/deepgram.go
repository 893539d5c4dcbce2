// Package deepgram implements recognition.Provider against the Deepgram
// streaming WebSocket API.
//
// The endpoint URL is taken verbatim from configuration, query parameters
// included, so operators control encoding, sample rate, and the numerals
// option (spoken "forty two" → "42") without a code change. Authentication is
// the Token scheme on the connection handshake.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/patchbay-voice/patchbay/pkg/recognition"
)

// DefaultURL is the streaming endpoint matched to Twilio media audio:
// 8 kHz μ-law, with numerals enabled so spoken game codes arrive as digits.
const DefaultURL = "wss://api.deepgram.com/v1/listen?encoding=mulaw&sample_rate=8000&numerals=true"

// resultBuffer is the capacity of a session's Results channel.
const resultBuffer = 64

// audioBuffer is the capacity of a session's outbound audio queue.
const audioBuffer = 256

// Provider implements recognition.Provider backed by Deepgram.
type Provider struct {
	url    string
	apiKey string
}

// New creates a Provider. url may be empty to use [DefaultURL]; apiKey must
// not be empty.
func New(url, apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	if url == "" {
		url = DefaultURL
	}
	return &Provider{url: url, apiKey: apiKey}, nil
}

// StartStream opens a streaming recognition session.
func (p *Provider) StartStream(ctx context.Context) (recognition.Session, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, p.url, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial %s: %w", p.url, err)
	}

	sess := &session{
		conn:    conn,
		results: make(chan recognition.Result, resultBuffer),
		audio:   make(chan []byte, audioBuffer),
		done:    make(chan struct{}),
		dead:    make(chan struct{}),
	}

	sess.wgWrite.Add(1)
	sess.wgRead.Add(1)
	go sess.writeLoop(ctx)
	go sess.readLoop(ctx)

	return sess, nil
}

// session is a live Deepgram streaming session. It implements
// recognition.Session.
type session struct {
	conn    *websocket.Conn
	results chan recognition.Result
	audio   chan []byte

	done      chan struct{} // closed by Close
	dead      chan struct{} // closed when the read loop exits
	closeOnce sync.Once
	wgWrite   sync.WaitGroup
	wgRead    sync.WaitGroup
}

// SendAudio queues one binary audio frame for delivery to Deepgram. It fails
// once the session is closed or the provider connection has died.
func (s *session) SendAudio(frame []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	case <-s.dead:
		return errors.New("deepgram: connection is dead")
	default:
	}
	select {
	case s.audio <- frame:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	case <-s.dead:
		return errors.New("deepgram: connection is dead")
	}
}

// Results returns the stream of recognition results. Closed when the session
// ends.
func (s *session) Results() <-chan recognition.Result { return s.results }

// Close terminates the session. It drains queued audio, asks Deepgram to
// flush, and tears down the connection. Safe to call more than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wgWrite.Wait()
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wgRead.Wait()
	})
	return nil
}

// writeLoop sends queued audio frames as binary messages. A write error
// closes the connection, which in turn stops the read loop.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wgWrite.Done()
	for {
		select {
		case frame := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
				s.conn.Close(websocket.StatusInternalError, "audio write failed")
				return
			}
		case <-s.done:
			// Flush whatever is still queued before Close sends CloseStream.
			for {
				select {
				case frame := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, frame)
				default:
					return
				}
			}
		case <-s.dead:
			return
		}
	}
}

// readLoop receives JSON messages from Deepgram and emits parsed results.
func (s *session) readLoop(ctx context.Context) {
	defer s.wgRead.Done()
	defer close(s.results)
	defer close(s.dead)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		res, ok := parseResult(msg)
		if !ok {
			continue
		}

		select {
		case s.results <- res:
		case <-s.done:
		}
	}
}

// response is the subset of Deepgram's streaming result envelope the relay
// reads.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResult parses one raw Deepgram message. Malformed payloads, non-result
// message types, and results without alternatives all return ok=false and are
// skipped; none of them is an error for the stream.
func parseResult(data []byte) (recognition.Result, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return recognition.Result{}, false
	}
	if resp.Type != "" && resp.Type != "Results" {
		return recognition.Result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return recognition.Result{}, false
	}

	alts := make([]recognition.Alternative, 0, len(resp.Channel.Alternatives))
	for _, a := range resp.Channel.Alternatives {
		alts = append(alts, recognition.Alternative{
			Transcript: a.Transcript,
			Confidence: a.Confidence,
		})
	}
	return recognition.Result{Alternatives: alts, IsFinal: resp.IsFinal}, true
}
