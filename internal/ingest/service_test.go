package ingest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coinpulse/coinpulse-backend/internal/external"
	"github.com/coinpulse/coinpulse-backend/internal/httputil"
	"github.com/coinpulse/coinpulse-backend/internal/ingest"
	"github.com/coinpulse/coinpulse-backend/internal/models"
	"github.com/coinpulse/coinpulse-backend/internal/ratelimit"
)

type memStore struct {
	mu      sync.Mutex
	prices  []*models.PriceSnapshot
	volumes []*models.VolumeSnapshot
	calls   int
}

func (m *memStore) Record(ctx context.Context, snap *models.PriceSnapshot) (*models.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, snap)
	return snap, nil
}

type memVolumes struct{ store *memStore }

func (m memVolumes) Record(ctx context.Context, snap *models.VolumeSnapshot) (*models.VolumeSnapshot, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.volumes = append(m.store.volumes, snap)
	return snap, nil
}

type memUsage struct{ store *memStore }

func (m memUsage) BumpCalls(ctx context.Context, n int) (*models.Usage, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.calls += n
	return &models.Usage{DailyCalls: m.store.calls, MonthlyCalls: m.store.calls}, nil
}

func newProviderStub(t *testing.T, infoStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"bitcoin":  {"usd": 100000, "usd_24h_change": 1.5},
			"ethereum": {"usd": 4000},
			"solana":   {"usd": 250}
		}`))
	})
	mux.HandleFunc("/coins/bitcoin", func(w http.ResponseWriter, r *http.Request) {
		if infoStatus != http.StatusOK {
			w.WriteHeader(infoStatus)
			return
		}
		w.Write([]byte(`{"market_cap_rank": 1, "market_data": {"ath": {"usd": 108000}}}`))
	})
	mux.HandleFunc("/coins/bitcoin/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tickers": [
			{"base": "BTC", "target": "USDT", "market": {"name": "X", "identifier": "x"},
			 "converted_volume": {"usd": 300, "btc": 0.003}, "trust_score": "green"},
			{"base": "BTC", "target": "USDC", "market": {"name": "X", "identifier": "x"},
			 "converted_volume": {"usd": 999, "btc": 0.01}, "trust_score": "green", "is_anomaly": true},
			{"base": "BTC", "target": "USDT", "market": {"name": "Y", "identifier": "y"},
			 "converted_volume": {"usd": 100, "btc": 0.001}, "trust_score": "yellow"}
		]}`))
	})
	return httptest.NewServer(mux)
}

func newCycleService(srvURL string, store *memStore) *ingest.Service {
	client := external.NewCoinGeckoClient(external.Options{
		BaseURL: srvURL,
		Assets: external.Assets{
			Home: external.Asset{ID: "bitcoin", Symbol: "btc"},
			Refs: []external.Asset{{ID: "ethereum", Symbol: "eth"}, {ID: "solana", Symbol: "sol"}},
		},
		Limiter:      ratelimit.NewLimiter(1000),
		ThrottleWait: 10 * time.Millisecond,
		Retry:        httputil.RetryConfig{MaxAttempts: 1, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
	})
	return ingest.NewService(client, store, memVolumes{store}, memUsage{store})
}

func TestRunCycleStoresSnapshotPair(t *testing.T) {
	srv := newProviderStub(t, http.StatusOK)
	defer srv.Close()

	store := &memStore{}
	svc := newCycleService(srv.URL, store)

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.PricesStored != 1 || res.VolumesStored != 1 {
		t.Fatalf("expected one snapshot pair, got %+v", res)
	}
	if !res.Enriched {
		t.Fatal("expected enriched cycle")
	}

	if len(store.prices) != 1 || len(store.volumes) != 1 {
		t.Fatalf("store counts: %d prices, %d volumes", len(store.prices), len(store.volumes))
	}
	p, v := store.prices[0], store.volumes[0]
	if !p.Timestamp.Equal(v.Timestamp) {
		t.Fatal("snapshot pair must share a timestamp")
	}
	if p.Rates["eth"] != 25 {
		t.Fatalf("cross rate btc/eth: got %f", p.Rates["eth"])
	}

	// anomalous X ticker excluded: X keeps only the valid 300
	if v.ExchangeCount != 2 || len(v.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got count=%d len=%d", v.ExchangeCount, len(v.Exchanges))
	}
	if v.Exchanges[0].Name != "X" || v.Exchanges[0].VolumeUSD != 300 {
		t.Fatalf("X volume should exclude anomalous ticker: %+v", v.Exchanges[0])
	}
	if v.Exchanges[1].Name != "Y" || v.Exchanges[1].VolumeUSD != 100 {
		t.Fatalf("Y unexpected: %+v", v.Exchanges[1])
	}

	if store.calls != 3 {
		t.Fatalf("expected 3 provider calls recorded, got %d", store.calls)
	}
}

func TestRunCycleUsageCountsThrottleRetries(t *testing.T) {
	var tickerHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin": {"usd": 100000}, "ethereum": {"usd": 4000}, "solana": {"usd": 250}}`))
	})
	mux.HandleFunc("/coins/bitcoin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market_cap_rank": 1, "market_data": {}}`))
	})
	mux.HandleFunc("/coins/bitcoin/tickers", func(w http.ResponseWriter, r *http.Request) {
		if tickerHits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"tickers": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{}
	svc := newCycleService(srv.URL, store)

	if _, err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// 3 endpoints plus the throttled tickers attempt: 4 real requests
	if store.calls != 4 {
		t.Fatalf("usage must count the throttled attempt, got %d calls", store.calls)
	}
}

func TestRunCycleEnrichmentFailureDegrades(t *testing.T) {
	srv := newProviderStub(t, http.StatusInternalServerError)
	defer srv.Close()

	store := &memStore{}
	svc := newCycleService(srv.URL, store)

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle must survive enrichment failure: %v", err)
	}
	if len(store.prices) != 1 {
		t.Fatal("price snapshot should still be stored")
	}
	p := store.prices[0]
	if p.Meta == nil {
		t.Fatal("simple-price extras should still populate meta")
	}
	if p.Meta.Rank != nil {
		t.Fatal("rank must be absent when the enrichment call failed")
	}
	t.Logf("degraded cycle result: %+v", res)
}

func TestRunCycleAbortsOnSpotFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tickers": [], "market_data": {}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{}
	svc := newCycleService(srv.URL, store)

	_, err := svc.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected cycle abort on spot-price failure")
	}
	if len(store.prices) != 0 || len(store.volumes) != 0 {
		t.Fatal("aborted cycle must not produce partial writes")
	}
	t.Logf("cycle aborted: %v", err)
}
