package models

import "time"

// PriceSnapshot captures spot prices for the home asset and its reference
// assets at one ingestion instant. Cross-rates are derived from the USD
// prices at write time and never recomputed.
type PriceSnapshot struct {
	ID        int64              `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Spot      map[string]float64 `json:"spot"`  // symbol -> USD price
	Rates     map[string]float64 `json:"rates"` // reference symbol -> home priced in reference units
	Meta      *MarketMeta        `json:"meta,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// MarketMeta is optional enrichment for a PriceSnapshot. Every field may be
// absent independently; a nil MarketMeta means enrichment was unavailable
// for that cycle.
type MarketMeta struct {
	Rank              *int     `json:"rank,omitempty"`
	ATHUSD            *float64 `json:"athUsd,omitempty"`
	ATHChangePercent  *float64 `json:"athChangePercent,omitempty"`
	Change24h         *float64 `json:"change24h,omitempty"`
	Change7d          *float64 `json:"change7d,omitempty"`
	Change30d         *float64 `json:"change30d,omitempty"`
	High24hUSD        *float64 `json:"high24hUsd,omitempty"`
	Low24hUSD         *float64 `json:"low24hUsd,omitempty"`
	Volume24hUSD      *float64 `json:"volume24hUsd,omitempty"`
	MarketCapUSD      *float64 `json:"marketCapUsd,omitempty"`
	FDVUSD            *float64 `json:"fdvUsd,omitempty"`
	CirculatingSupply *float64 `json:"circulatingSupply,omitempty"`
	TotalSupply       *float64 `json:"totalSupply,omitempty"`
}

// Empty reports whether no enrichment field is set.
func (m *MarketMeta) Empty() bool {
	if m == nil {
		return true
	}
	return m.Rank == nil && m.ATHUSD == nil && m.ATHChangePercent == nil &&
		m.Change24h == nil && m.Change7d == nil && m.Change30d == nil &&
		m.High24hUSD == nil && m.Low24hUSD == nil && m.Volume24hUSD == nil &&
		m.MarketCapUSD == nil && m.FDVUSD == nil &&
		m.CirculatingSupply == nil && m.TotalSupply == nil
}

// ExchangeVolume is one exchange's aggregated contribution within a
// VolumeSnapshot. Pairs holds the distinct trading-pair labels observed.
type ExchangeVolume struct {
	Name       string   `json:"name"`
	VolumeUSD  float64  `json:"volumeUsd"`
	VolumeHome float64  `json:"volumeHome"`
	Pairs      []string `json:"pairs"`
	TrustScore string   `json:"trustScore"` // "high", "medium", "low" or "unknown"
	TradeURL   *string  `json:"tradeUrl,omitempty"`
}

// VolumeSnapshot captures per-exchange volumes at one ingestion instant.
// Exchanges is sorted descending by VolumeUSD and holds at most the stored
// top-N entries; ExchangeCount is the distinct exchange count before
// truncation. Totals are summed over the stored (truncated) list only.
type VolumeSnapshot struct {
	ID            int64            `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	TotalUSD      float64          `json:"totalVolumeUsd"`
	TotalHome     float64          `json:"totalVolumeHome"`
	ExchangeCount int              `json:"exchangeCount"`
	Exchanges     []ExchangeVolume `json:"exchanges"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Trust indicator values as stored. The provider reports colors
// (green/yellow/red); they are mapped on ingestion.
const (
	TrustHigh    = "high"
	TrustMedium  = "medium"
	TrustLow     = "low"
	TrustUnknown = "unknown"
)
