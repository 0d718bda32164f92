package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinpulse/coinpulse-backend/internal/external"
	"github.com/coinpulse/coinpulse-backend/internal/models"
)

// Writer interfaces keep the service decoupled from the concrete pgx repos.

type PriceWriter interface {
	Record(ctx context.Context, snap *models.PriceSnapshot) (*models.PriceSnapshot, error)
}

type VolumeWriter interface {
	Record(ctx context.Context, snap *models.VolumeSnapshot) (*models.VolumeSnapshot, error)
}

type UsageWriter interface {
	BumpCalls(ctx context.Context, n int) (*models.Usage, error)
}

// CycleResult reports what one ingestion cycle stored.
type CycleResult struct {
	Timestamp     time.Time `json:"timestamp"`
	PricesStored  int       `json:"pricesStored"`
	VolumesStored int       `json:"volumesStored"`
	Enriched      bool      `json:"enriched"`
}

// Service runs the ingestion pipeline: fetch, normalize, build, store.
type Service struct {
	client  *external.CoinGeckoClient
	prices  PriceWriter
	volumes VolumeWriter
	usage   UsageWriter
}

func NewService(client *external.CoinGeckoClient, prices PriceWriter, volumes VolumeWriter, usage UsageWriter) *Service {
	return &Service{
		client:  client,
		prices:  prices,
		volumes: volumes,
		usage:   usage,
	}
}

// RunCycle executes one ingestion cycle. The three provider calls run
// concurrently: a spot-price or tickers failure aborts the cycle, an
// enrichment failure only degrades it. The two snapshots are written
// independently; a failure between the writes leaves an orphaned price
// snapshot, which the query layer tolerates.
func (s *Service) RunCycle(ctx context.Context) (*CycleResult, error) {
	ts := time.Now().UTC().Truncate(time.Second)
	fmt.Printf("[INGEST] Cycle started (%s)\n", ts.Format(time.RFC3339))

	var (
		spot    map[string]external.SimplePrice
		tickers []external.Ticker
		info    *external.CoinInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spot, err = s.client.GetSimplePrices(gctx)
		if err != nil {
			return fmt.Errorf("spot prices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tickers, err = s.client.GetTickers(gctx)
		if err != nil {
			return fmt.Errorf("tickers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		i, err := s.client.GetCoinInfo(gctx)
		if err != nil {
			fmt.Printf("[INGEST] Enrichment unavailable this cycle: %v\n", err)
			return nil
		}
		info = i
		return nil
	})

	fetchErr := g.Wait()
	s.bumpUsage(ctx, s.client.TakeRequestCount())
	if fetchErr != nil {
		return nil, fetchErr
	}

	priceSnap, volSnap, err := BuildSnapshots(ts, s.client.Assets(), spot, info, tickers)
	if err != nil {
		return nil, fmt.Errorf("build snapshots: %w", err)
	}

	if _, err := s.prices.Record(ctx, priceSnap); err != nil {
		return nil, fmt.Errorf("store price snapshot: %w", err)
	}
	if _, err := s.volumes.Record(ctx, volSnap); err != nil {
		return nil, fmt.Errorf("store volume snapshot: %w", err)
	}

	fmt.Printf("[INGEST] Stored snapshots: %s $%.2f | %d exchanges ($%.0f USD volume) | enriched=%v\n",
		s.client.Assets().Home.Symbol, priceSnap.Spot[s.client.Assets().Home.Symbol],
		volSnap.ExchangeCount, volSnap.TotalUSD, priceSnap.Meta != nil)

	return &CycleResult{
		Timestamp:     ts,
		PricesStored:  1,
		VolumesStored: 1,
		Enriched:      priceSnap.Meta != nil,
	}, nil
}

// bumpUsage records the HTTP requests the client actually issued this
// cycle, retries included, so the quota record tracks real provider load.
// Counting is best-effort; a usage write failure never fails the cycle.
func (s *Service) bumpUsage(ctx context.Context, n int) {
	if s.usage == nil || n == 0 {
		return
	}
	if _, err := s.usage.BumpCalls(ctx, n); err != nil {
		fmt.Printf("[INGEST] Warning: could not record usage: %v\n", err)
	}
}
