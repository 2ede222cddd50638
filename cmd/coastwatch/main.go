package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/use-agent/coastwatch/aggregator"
	"github.com/use-agent/coastwatch/api"
	"github.com/use-agent/coastwatch/cache"
	"github.com/use-agent/coastwatch/config"
	"github.com/use-agent/coastwatch/fetcher"
	"github.com/use-agent/coastwatch/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("coastwatch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"platform", runtime.GOOS,
	)
	if cfg.Upstream.TidesAPIKey == "" {
		slog.Warn("COASTWATCH_TIDES_API_KEY is not set; the tides upstream will likely reject requests")
	}

	// ── 3. Scraper: resolver strategy is chosen once for this host ──
	resolver := scraper.NewResolver(runtime.GOOS, cfg.Browser)
	sc := scraper.New(resolver, &scraper.RodLauncher{Stealth: cfg.Browser.Stealth}, cfg.Scraper)

	// ── 4. Upstream fetcher ─────────────────────────────────────────
	transport := fetcher.DefaultTransport()
	if cfg.Upstream.Fingerprint {
		transport = fetcher.FingerprintTransport()
	}
	ft := fetcher.New(transport)

	// ── 5. Cache + aggregator ───────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	ag := aggregator.New(sc, ft, cc, cfg.Upstream, cfg.Cache)
	slog.Info("aggregator ready",
		"ttl", cfg.Cache.TTL,
		"coalesceMisses", cfg.Cache.CoalesceMisses,
	)

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(ag, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("proxy server running", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// A live wind scrape can take up to navigation + readiness deadlines.
	grace := cfg.Scraper.NavigationTimeout + cfg.Scraper.ReadyTimeout
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("coastwatch stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
