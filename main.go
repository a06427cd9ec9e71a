// Command fusionfall-bot relays live activity from a FusionFall game-server
// monitor into a chat channel. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to the monitor port and keeps the connection alive forever,
//     reconnecting on a fixed delay after any socket failure.
//   - Relays chat and in-game mail to the public webhook, routes banned-word
//     hits to the moderation webhook, and tracks the live player count.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/config"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/filter"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/monitor"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/relay"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/server"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("fusionfall-bot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Outbound sinks. A missing relay webhook leaves the session running for
	// status/metrics only; a missing moderation webhook drops flagged content.
	var public relay.Sink = relay.Discard{}
	if err := cfg.ValidateRelayReady(); err != nil {
		slog.Warn("public relay disabled", slog.Any("err", err))
	} else {
		public = relay.NewWebhookSink(cfg.RelayWebhookURL)
	}
	var moderation relay.Sink
	if cfg.ModerationWebhookURL != "" {
		moderation = relay.NewWebhookSink(cfg.ModerationWebhookURL)
	} else {
		slog.Info("moderation webhook not set; flagged content will be dropped")
	}

	words := filter.New(cfg.BannedWords)
	slog.Info("banned-word filter loaded", slog.Int("words", words.Len()))

	session := monitor.NewSession(cfg, words, public, moderation, relay.LogPresence{})

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go session.Run(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics)
	go func() {
		if err := server.Start(ctx, session, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
