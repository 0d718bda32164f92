package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinpulse/coinpulse-backend/internal/api"
	"github.com/coinpulse/coinpulse-backend/internal/config"
	"github.com/coinpulse/coinpulse-backend/internal/db"
	"github.com/coinpulse/coinpulse-backend/internal/external"
	"github.com/coinpulse/coinpulse-backend/internal/ingest"
	"github.com/coinpulse/coinpulse-backend/internal/ratelimit"
	"github.com/coinpulse/coinpulse-backend/internal/repository"
	"github.com/coinpulse/coinpulse-backend/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║     CoinPulse Snapshot Service       ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Schema setup failed: %v\n", err)
		os.Exit(1)
	}

	// Repos
	priceRepo := repository.NewPriceSnapshotRepo(pool)
	volumeRepo := repository.NewVolumeSnapshotRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)

	// Market data provider
	assets := external.Assets{
		Home: external.Asset{ID: cfg.HomeCoinID, Symbol: cfg.HomeCoinSymbol},
	}
	for i, id := range cfg.RefCoinIDs {
		assets.Refs = append(assets.Refs, external.Asset{ID: id, Symbol: cfg.RefCoinSymbols[i]})
	}
	client := external.NewCoinGeckoClient(external.Options{
		BaseURL: cfg.CoinGeckoBaseURL,
		Assets:  assets,
		Limiter: ratelimit.NewLimiter(cfg.RateLimitPerMinute),
	})

	ingestSvc := ingest.NewService(client, priceRepo, volumeRepo, usageRepo)

	// Scheduler owns every ingestion entry point: the periodic job, the
	// daily retention purge, and manual runs triggered over the API.
	sched := scheduler.NewIngestScheduler(ingestSvc, scheduler.IngestSchedulerConfig{
		Interval:      time.Duration(cfg.IngestIntervalMinutes) * time.Minute,
		RetentionDays: cfg.RetentionDays,
	}, priceRepo, volumeRepo)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(pool, cfg.Port, cfg.APIKey, cfg.CORSAllowOrigin, cfg.HomeCoinSymbol, sched)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Ingest scheduler (periodic snapshots + daily retention purge)
	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "[SCHEDULER] Start failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
