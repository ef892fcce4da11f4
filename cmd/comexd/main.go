package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/comexhq/comex/internal/access"
	"github.com/comexhq/comex/internal/config"
	"github.com/comexhq/comex/internal/engine"
	"github.com/comexhq/comex/internal/handler"
	"github.com/comexhq/comex/internal/journal"
	"github.com/comexhq/comex/internal/ledger"
	"github.com/comexhq/comex/internal/market"
	"github.com/comexhq/comex/internal/metrics"
	"github.com/comexhq/comex/internal/notify"
	"github.com/comexhq/comex/internal/service"
	"github.com/comexhq/comex/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("COMEX_PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	// Stores and core components.
	registry := ledger.NewRegistry()
	lg := ledger.NewLedger(registry)
	ac := access.NewControl(cfg.InitialAdmin)
	pairs := market.NewPairRegistry()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	books := engine.NewBookManager()
	breaker := engine.NewCircuitBreaker(cfg.BreakerCooldown)
	matcher := engine.NewMatcher(books, lg, pairs, breaker, orders, trades, cfg.MaxFills)
	locks := service.NewCommodityLocks()
	expiryMgr := engine.NewExpiryManager(cfg.ExpiryInterval, matcher, nil, locks)

	// Open the journal and rebuild state from the event stream.
	journalStore, err := journal.OpenSQLite(cfg.JournalPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.JournalPath).Msg("failed to open journal")
	}
	defer journalStore.Close()

	events, err := journalStore.Load(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load journal")
	}
	replayStart := time.Now()
	err = journal.Replay(context.Background(), events, &journal.State{
		Registry: registry,
		Access:   ac,
		Ledger:   lg,
		Pairs:    pairs,
		Orders:   orders,
		Trades:   trades,
		Books:    books,
		Breaker:  breaker,
		Expiry:   expiryMgr,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("journal replay failed")
	}
	logger.Info().
		Int("events", len(events)).
		Dur("duration", time.Since(replayStart)).
		Msg("journal replayed")

	// Services.
	m := metrics.New()
	notifySvc := notify.NewService(store.NewWebhookStore(), cfg.WebhookTimeout, logger)
	ledgerSvc := service.NewLedgerService(ac, registry, lg, journalStore, m, locks, logger)
	tradingSvc := service.NewTradingService(ac, lg, pairs, matcher, expiryMgr, breaker, orders, trades, notifySvc, journalStore, m, locks, logger)
	expiryMgr.SetNotifier(tradingSvc)

	router := handler.NewRouter(ledgerSvc, tradingSvc, notifySvc, m.Handler(), logger)

	// Start the expiry sweeper with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expiryMgr.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	cancel()

	logger.Info().Msg("server stopped")
}
