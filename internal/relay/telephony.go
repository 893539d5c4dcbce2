package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/patchbay-voice/patchbay/internal/observe"
	"github.com/patchbay-voice/patchbay/pkg/audio"
	"github.com/patchbay-voice/patchbay/pkg/recognition"
	"github.com/patchbay-voice/patchbay/pkg/synthesis"
	"github.com/patchbay-voice/patchbay/pkg/telephony"
)

// TelephonyLeg handles inbound telephony media-stream connections. Each
// connection opens a companion recognition session and runs three loops:
// media → assembler → recognizer, recognizer results → pairing bridge, and
// the reverse relay carrying game text back toward the call.
//
// No code is known when the connection opens; the call self-identifies only
// once the caller speaks a live code (see [Bridge]).
type TelephonyLeg struct {
	registry  *Registry
	recog     recognition.Provider
	synth     synthesis.Provider
	archive   Archive
	matcher   *Matcher
	frameSize int
	buffer    int
	metrics   *observe.Metrics
	log       *slog.Logger
}

// NewTelephonyLeg creates the shared handler for the telephony route.
// synth and archive may be nil; metrics may be nil to use
// [observe.DefaultMetrics]. frameSize and buffer <= 0 select the defaults.
func NewTelephonyLeg(registry *Registry, recog recognition.Provider, synth synthesis.Provider,
	archive Archive, matcher *Matcher, frameSize, buffer int, metrics *observe.Metrics) *TelephonyLeg {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}
	return &TelephonyLeg{
		registry:  registry,
		recog:     recog,
		synth:     synth,
		archive:   archive,
		matcher:   matcher,
		frameSize: frameSize,
		buffer:    buffer,
		metrics:   metrics,
		log:       slog.Default(),
	}
}

// callState is the per-call metadata shared between the media loop (which
// learns the stream SID from the start event) and the reverse loop (which
// needs it to address outbound media).
type callState struct {
	mu        sync.Mutex
	streamSID string
}

func (c *callState) setStreamSID(sid string) {
	c.mu.Lock()
	c.streamSID = sid
	c.mu.Unlock()
}

func (c *callState) getStreamSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamSID
}

// Handle owns conn for the life of one call. A recognition connect failure
// fails only this call: the media stream is closed and the server keeps
// serving everyone else.
func (l *TelephonyLeg) Handle(ctx context.Context, conn *websocket.Conn) error {
	sess, err := l.recog.StartStream(ctx)
	if err != nil {
		l.metrics.RecognizerErrors.Add(ctx, 1)
		l.log.Error("recognition service unavailable, dropping call", "err", err)
		conn.Close(websocket.StatusInternalError, "recognition service unavailable")
		return fmt.Errorf("relay: start recognition stream: %w", err)
	}
	defer sess.Close()

	l.metrics.ActiveCallLegs.Add(ctx, 1)
	defer l.metrics.ActiveCallLegs.Add(ctx, -1)
	l.log.Info("call connected, streaming to recognizer")

	reverse := make(chan Message, l.buffer)
	bridge := NewBridge(l.registry, l.matcher, reverse, l.archive, l.metrics)
	call := &callState{}

	g, gctx := errgroup.WithContext(ctx)

	// Media loop: telephony events in, audio frames out. A recognizer write
	// failure stops audio forwarding but the loop keeps reading (and
	// discarding media) so that the caller hanging up still ends the leg; a
	// media-stream read failure means the call hung up and ends the whole
	// leg.
	g.Go(func() error {
		defer sess.Close()
		asm := audio.NewAssembler(l.frameSize)
		gaps := 0
		forwarding := true
		for {
			_, data, err := conn.Read(gctx)
			if err != nil {
				return fmt.Errorf("relay: media stream closed: %w", err)
			}
			ev, err := telephony.ParseEvent(data)
			if err != nil {
				// Malformed inbound payloads are ignored, not fatal.
				continue
			}
			switch ev.Event {
			case telephony.EventStart:
				sid := ev.StreamSID
				if sid == "" && ev.Start != nil {
					sid = ev.Start.StreamSID
				}
				call.setStreamSID(sid)
				l.log.Debug("media stream started", "stream_sid", sid)
			case telephony.EventMedia:
				if ev.Media == nil || !forwarding {
					continue
				}
				payload, err := ev.Media.DecodePayload()
				if err != nil {
					continue
				}
				ts, err := ev.Media.TimestampMS()
				if err != nil {
					continue
				}
				frame := asm.Ingest(payload, ts)
				if asm.Gaps() > gaps {
					l.metrics.TimestampGaps.Add(gctx, int64(asm.Gaps()-gaps))
					gaps = asm.Gaps()
				}
				if frame == nil {
					continue
				}
				if err := sess.SendAudio(frame); err != nil {
					// The recognizer is presumed dead. Close the session so
					// its results dry up, but keep draining the socket: only
					// the caller hanging up ends the leg.
					l.metrics.RecognizerErrors.Add(gctx, 1)
					l.log.Warn("recognizer write failed, stopping audio forwarding", "err", err)
					sess.Close()
					forwarding = false
					continue
				}
				l.metrics.AudioFrames.Add(gctx, 1)
			}
		}
	})

	// Bridge loop: recognition results drive matching and forwarding. Ends
	// when the session closes its results channel or the call ends.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case res, open := <-sess.Results():
				if !open {
					return nil
				}
				bridge.HandleResult(gctx, res)
			}
		}
	})

	// Reverse loop: game text toward the call. Without a synthesis provider
	// the text is logged and discarded; with one it is rendered and written
	// back as outbound media.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case m := <-reverse:
				l.speak(gctx, conn, call, string(m.Data))
			}
		}
	})

	err = g.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
	if code := bridge.MatchedCode(); code != "" {
		l.log.Info("call ended", "code", code)
	} else {
		l.log.Info("call ended before speaking a code")
	}
	return err
}

// speak renders text into the call, or logs it when synthesis is not
// configured.
func (l *TelephonyLeg) speak(ctx context.Context, conn *websocket.Conn, call *callState, text string) {
	if l.synth == nil {
		l.log.Info("no synthesis provider, discarding game text", "text", text)
		return
	}
	rendered, err := l.synth.Synthesize(ctx, text)
	if err != nil {
		l.log.Warn("synthesis failed", "err", err)
		return
	}
	sid := call.getStreamSID()
	if sid == "" {
		l.log.Warn("no stream SID yet, cannot play synthesized audio")
		return
	}
	frame, err := telephony.EncodeMedia(sid, rendered)
	if err != nil {
		l.log.Warn("encode outbound media failed", "err", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		l.log.Warn("write outbound media failed", "err", err)
	}
}
