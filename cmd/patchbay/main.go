// Command patchbay is the relay server pairing inbound telephone calls with
// waiting game sessions via spoken game codes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patchbay-voice/patchbay/internal/archive"
	"github.com/patchbay-voice/patchbay/internal/config"
	"github.com/patchbay-voice/patchbay/internal/health"
	"github.com/patchbay-voice/patchbay/internal/observe"
	"github.com/patchbay-voice/patchbay/internal/relay"
	"github.com/patchbay-voice/patchbay/internal/resilience"
	"github.com/patchbay-voice/patchbay/internal/server"
	"github.com/patchbay-voice/patchbay/pkg/recognition/deepgram"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "patchbay: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "patchbay: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("patchbay starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "patchbay"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Archive (optional) ────────────────────────────────────────────────────
	var checkers []health.Checker
	var store relay.Archive
	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		pg, err := archive.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect archive", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		checkers = append(checkers, health.Checker{Name: "archive", Check: pg.Ping})
		slog.Info("archive connected")
	}

	// ── Relay wiring ──────────────────────────────────────────────────────────
	pool := relay.NewCodePool(cfg.Relay.GameCodes)
	metrics.CodesAvailable.Add(ctx, int64(pool.Available()))
	registry := relay.NewRegistry(cfg.Relay.ChannelBuffer)
	matcher := relay.NewMatcher(cfg.Relay.PhoneticMatching)

	dg, err := deepgram.New(cfg.Recognizer.URL, cfg.Recognizer.APIKey)
	if err != nil {
		slog.Error("failed to configure recognizer", "err", err)
		return 1
	}
	// A dead recognizer should fail calls fast instead of dial-timing-out
	// each one.
	recog := resilience.NewGuard(dg, resilience.GuardConfig{})

	gameLeg := relay.NewGameLeg(pool, registry, cfg.Telephony.PhoneNumber, metrics)
	telLeg := relay.NewTelephonyLeg(registry, recog, nil, store, matcher,
		cfg.Telephony.FrameBytes, cfg.Relay.ChannelBuffer, metrics)

	healthHandler := health.New(func() health.RelaySnapshot {
		return health.RelaySnapshot{
			CodesAvailable: pool.Available(),
			GameLegs:       registry.Len(),
		}
	}, checkers...)

	srvCfg := server.Config{ListenAddr: cfg.Server.ListenAddr}
	if cfg.Server.TLS != nil {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}
	srv := server.New(srvCfg, gameLeg, telLeg, healthHandler, metrics)

	slog.Info("server ready — press Ctrl+C to shut down",
		"codes", pool.Available(),
		"phone_number", cfg.Telephony.PhoneNumber,
	)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
