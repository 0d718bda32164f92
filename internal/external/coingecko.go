package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coinpulse/coinpulse-backend/internal/httputil"
	"github.com/coinpulse/coinpulse-backend/internal/ratelimit"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// maxThrottleRetries caps how many times a single logical call is retried
// after the provider answers 429. After the cap the call fails with
// ErrProviderThrottled instead of looping.
const maxThrottleRetries = 2

// ErrProviderThrottled means the provider kept answering 429 after the
// retry budget was spent. Retryable on a later cycle, fatal for this one.
var ErrProviderThrottled = errors.New("provider throttled: retry budget exhausted")

// ProviderError is a non-2xx, non-429 provider response. Not retryable.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

// Asset is one tracked coin: provider id plus the symbol used in snapshots.
type Asset struct {
	ID     string
	Symbol string
}

// Assets names the home asset and its reference assets.
type Assets struct {
	Home Asset
	Refs []Asset
}

// IDs returns all provider coin ids, home first.
func (a Assets) IDs() []string {
	ids := make([]string, 0, 1+len(a.Refs))
	ids = append(ids, a.Home.ID)
	for _, r := range a.Refs {
		ids = append(ids, r.ID)
	}
	return ids
}

type CoinGeckoClient struct {
	baseURL      string
	assets       Assets
	limiter      *ratelimit.Limiter
	throttleWait time.Duration
	httpClient   *http.Client
	retry        httputil.RetryConfig
	requests     atomic.Int64 // HTTP requests actually issued, retries included
}

type Options struct {
	BaseURL      string
	Assets       Assets
	Limiter      *ratelimit.Limiter
	ThrottleWait time.Duration // pause before retrying after a 429
	Retry        httputil.RetryConfig
}

func NewCoinGeckoClient(opts Options) *CoinGeckoClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(10)
	}
	throttleWait := opts.ThrottleWait
	if throttleWait <= 0 {
		throttleWait = time.Minute
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		}
	}

	return &CoinGeckoClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		assets:       opts.Assets,
		limiter:      limiter,
		throttleWait: throttleWait,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		retry:        retry,
	}
}

// Assets returns the tracked asset set.
func (c *CoinGeckoClient) Assets() Assets {
	return c.assets
}

// TakeRequestCount returns the number of HTTP requests issued since the
// last take and resets the counter. Every request counts against the
// provider's quota, so throttle and backoff retries are included.
func (c *CoinGeckoClient) TakeRequestCount() int {
	return int(c.requests.Swap(0))
}

// SimplePrice is one coin's entry from /simple/price. The non-price fields
// ride along in the same call and may be absent.
type SimplePrice struct {
	USD          float64  `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
	USD24hVol    *float64 `json:"usd_24h_vol"`
	USDMarketCap *float64 `json:"usd_market_cap"`
}

// CoinInfo is the enrichment subset of /coins/{id}.
type CoinInfo struct {
	MarketCapRank *int `json:"market_cap_rank"`
	MarketData    struct {
		ATH                      map[string]float64 `json:"ath"`
		ATHChangePercentage      map[string]float64 `json:"ath_change_percentage"`
		PriceChangePercentage7d  *float64           `json:"price_change_percentage_7d"`
		PriceChangePercentage30d *float64           `json:"price_change_percentage_30d"`
		High24h                  map[string]float64 `json:"high_24h"`
		Low24h                   map[string]float64 `json:"low_24h"`
		CirculatingSupply        *float64           `json:"circulating_supply"`
		TotalSupply              *float64           `json:"total_supply"`
		FullyDilutedValuation    map[string]float64 `json:"fully_diluted_valuation"`
	} `json:"market_data"`
}

// Ticker is one raw per-trading-pair entry from /coins/{id}/tickers.
type Ticker struct {
	Base   string `json:"base"`
	Target string `json:"target"`
	Market struct {
		Name       string `json:"name"`
		Identifier string `json:"identifier"`
	} `json:"market"`
	Last            float64            `json:"last"`
	Volume          float64            `json:"volume"`
	ConvertedVolume map[string]float64 `json:"converted_volume"`
	TrustScore      string             `json:"trust_score"`
	IsAnomaly       bool               `json:"is_anomaly"`
	IsStale         bool               `json:"is_stale"`
	TradeURL        string             `json:"trade_url"`
}

// GetSimplePrices fetches USD spot prices for the home and reference assets
// in a single call, keyed by provider coin id.
func (c *CoinGeckoClient) GetSimplePrices(ctx context.Context) (map[string]SimplePrice, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(c.assets.IDs(), ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_market_cap", "true")

	var out map[string]SimplePrice
	if err := c.get(ctx, "/simple/price?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("simple price: %w", err)
	}
	return out, nil
}

// GetCoinInfo fetches rich market metadata for the home asset. Callers treat
// a failure here as a degraded cycle, not a fatal one.
func (c *CoinGeckoClient) GetCoinInfo(ctx context.Context) (*CoinInfo, error) {
	path := fmt.Sprintf(
		"/coins/%s?localization=false&tickers=false&market_data=true&community_data=false&developer_data=false&sparkline=false",
		c.assets.Home.ID)

	var out CoinInfo
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("coin info: %w", err)
	}
	return &out, nil
}

// GetTickers fetches raw per-exchange tickers for the home asset.
func (c *CoinGeckoClient) GetTickers(ctx context.Context) ([]Ticker, error) {
	path := fmt.Sprintf("/coins/%s/tickers?include_exchange_logo=false&depth=false", c.assets.Home.ID)

	var out struct {
		Tickers []Ticker `json:"tickers"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("tickers: %w", err)
	}
	return out.Tickers, nil
}

// get performs one rate-limited call. A 429 response waits out the throttle
// window and retries the same request, at most maxThrottleRetries times.
func (c *CoinGeckoClient) get(ctx context.Context, path string, out any) error {
	reqURL := c.baseURL + path

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("acquire rate limit slot: %w", err)
		}

		// counted in the request factory so backoff retries inside Do
		// are charged too
		resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
			c.requests.Add(1)
			return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		})
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			httputil.ReadBody(resp)
			if attempt >= maxThrottleRetries {
				return fmt.Errorf("%s: %w", path, ErrProviderThrottled)
			}
			fmt.Printf("[RATELIMIT] Provider throttled (429), waiting %s before retry %d/%d\n",
				c.throttleWait, attempt+1, maxThrottleRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.throttleWait):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return &ProviderError{Status: resp.StatusCode, Message: httputil.ReadBody(resp)}
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
}
