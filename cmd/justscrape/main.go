package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/api"
	"github.com/use-agent/justscrape/browser"
	"github.com/use-agent/justscrape/config"
	"github.com/use-agent/justscrape/fetcher"
	"github.com/use-agent/justscrape/registry"
	"github.com/use-agent/justscrape/research"
	"github.com/use-agent/justscrape/search"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("justscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"registry", cfg.Registry.Path,
	)
	gin.SetMode(cfg.Server.Mode)

	// ── 3. Browser pool (lazy: Chromium launches on first rendered fetch) ──
	pool := browser.NewPool(cfg.Browser)
	defer pool.Shutdown()

	// ── 4. Fetcher ──────────────────────────────────────────────────
	f := fetcher.New(cfg.Fetcher, cfg.Browser.Proxy, pool)

	// ── 5. Search client ────────────────────────────────────────────
	provider := search.NewDuckDuckGo(cfg.Search.Timeout, cfg.Search.Region)
	limiter := search.NewRateLimiter(cfg.Search.MinDelay, cfg.Search.MaxDelay, cfg.Search.BackoffFactor)
	cache := search.NewCache(cfg.Search.CacheTTL, cfg.Search.CacheMaxEntries)
	client := search.NewClient(provider, limiter, cache)

	// ── 6. Sitemap registry ─────────────────────────────────────────
	reg, err := registry.Open(cfg.Registry.Path, cfg.Registry.StaleAfter)
	if err != nil {
		slog.Error("failed to open sitemap registry", "error", err)
		os.Exit(1)
	}
	defer reg.Close()

	// ── 7. Orchestrator + router ────────────────────────────────────
	orc := research.New(f, client, reg)

	startTime := time.Now()
	router := api.NewRouter(api.Deps{
		Config:       cfg,
		Pool:         pool,
		SearchClient: client,
		Registry:     reg,
		Orchestrator: orc,
		StartTime:    startTime,
	})

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Shutdown and reg.Close run via defer.
	slog.Info("justscrape stopped")
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
