// Package server exposes the relay over HTTP: two websocket routes for the
// game and telephony legs, Prometheus metrics, and health endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patchbay-voice/patchbay/internal/health"
	"github.com/patchbay-voice/patchbay/internal/observe"
	"github.com/patchbay-voice/patchbay/internal/relay"
)

// shutdownGrace is how long Shutdown waits for in-flight requests. Websocket
// legs are closed immediately; their connections end when the server does.
const shutdownGrace = 10 * time.Second

// Config holds the server's network settings.
type Config struct {
	// ListenAddr is the TCP address to listen on.
	ListenAddr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string
}

// Server routes websocket and HTTP traffic to the relay legs.
type Server struct {
	cfg     Config
	game    *relay.GameLeg
	tel     *relay.TelephonyLeg
	httpSrv *http.Server
	log     *slog.Logger
}

// New assembles the HTTP mux and returns a Server ready to Run. health may be
// nil to skip the health routes; metrics may be nil to use the defaults.
func New(cfg Config, game *relay.GameLeg, tel *relay.TelephonyLeg, h *health.Handler, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	s := &Server{
		cfg:  cfg,
		game: game,
		tel:  tel,
		log:  slog.Default(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /game", s.handleGame)
	mux.HandleFunc("GET /twilio", s.handleTelephony)
	mux.Handle("GET /metrics", promhttp.Handler())
	if h != nil {
		h.Register(mux)
	}

	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}
	return s
}

// Handler returns the assembled HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is cancelled or the listener fails, then shuts down
// gracefully. Returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.CertFile != "" {
			s.log.Info("listening with TLS", "addr", s.cfg.ListenAddr)
			err = s.httpSrv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			s.log.Info("listening", "addr", s.cfg.ListenAddr)
			err = s.httpSrv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		// Long-lived websocket legs hold their connections open; after the
		// grace period they are torn down hard.
		s.httpSrv.Close()
		if !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return nil
}

// handleGame upgrades the connection and hands it to the game leg.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("game websocket accept failed", "err", err)
		return
	}
	if err := s.game.Handle(r.Context(), conn); err != nil {
		s.log.Debug("game leg ended", "err", err)
	}
}

// handleTelephony upgrades the connection and hands it to the telephony leg.
func (s *Server) handleTelephony(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("telephony websocket accept failed", "err", err)
		return
	}
	if err := s.tel.Handle(r.Context(), conn); err != nil {
		s.log.Debug("telephony leg ended", "err", err)
	}
}
