package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/patchbay-voice/patchbay/internal/observe"
)

// GameLeg handles game client connections. Each connection claims a code,
// announces the callback phone number and the code to the client, registers a
// half-open pairing, and then relays registry messages to the socket until
// either side disconnects. On exit the code goes back to the pool.
type GameLeg struct {
	pool     *CodePool
	registry *Registry
	phone    string
	metrics  *observe.Metrics
	log      *slog.Logger
}

// NewGameLeg creates the shared handler for the game route. phone is the
// callback number announced to every client. metrics may be nil to use
// [observe.DefaultMetrics].
func NewGameLeg(pool *CodePool, registry *Registry, phone string, metrics *observe.Metrics) *GameLeg {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &GameLeg{
		pool:     pool,
		registry: registry,
		phone:    phone,
		metrics:  metrics,
		log:      slog.Default(),
	}
}

// Handle owns conn for the life of one game session. It returns after the
// connection is closed and the session's code has been released.
func (l *GameLeg) Handle(ctx context.Context, conn *websocket.Conn) error {
	code, ok := l.pool.Claim()
	if !ok {
		// Exhaustion is a refusal, not a failure.
		l.metrics.CodesExhausted.Add(ctx, 1)
		l.log.Warn("refusing game connection: no codes available")
		conn.Close(websocket.StatusTryAgainLater, "no game codes available")
		return nil
	}
	l.metrics.CodesAvailable.Add(ctx, -1)
	l.metrics.ActiveGameLegs.Add(ctx, 1)
	defer l.metrics.ActiveGameLegs.Add(ctx, -1)

	// Cleanup must run exactly once whichever loop ends first: remove the
	// entry before releasing the code so the pool/registry invariant holds
	// at every point in between.
	var cleanup sync.Once
	release := func() {
		cleanup.Do(func() {
			l.registry.Remove(code)
			l.pool.Release(code)
			l.metrics.CodesAvailable.Add(ctx, 1)
			l.log.Info("game session ended", "code", code)
		})
	}
	defer release()

	// Handshake: the client learns what to dial, then what to speak.
	if err := conn.Write(ctx, websocket.MessageText, []byte(l.phone)); err != nil {
		return fmt.Errorf("relay: send phone number: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(code)); err != nil {
		return fmt.Errorf("relay: send code: %w", err)
	}

	gameCh, err := l.registry.Register(code)
	if err != nil {
		return err
	}
	l.log.Info("game session waiting for caller", "code", code)

	g, gctx := errgroup.WithContext(ctx)

	// Outbound: registry → socket. Ends when Remove closes the channel.
	g.Go(func() error {
		for {
			select {
			case m, open := <-gameCh:
				if !open {
					return nil
				}
				if err := conn.Write(gctx, m.Type, m.Data); err != nil {
					return fmt.Errorf("relay: write to game: %w", err)
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Inbound: drain the socket until the client goes away. Game-originated
	// text is not relayed anywhere in this direction; transcript flow is
	// recognizer → game only.
	g.Go(func() error {
		defer release()
		for {
			if _, _, err := conn.Read(gctx); err != nil {
				return nil
			}
		}
	})

	err = g.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
	return err
}
