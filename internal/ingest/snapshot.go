package ingest

import (
	"fmt"
	"time"

	"github.com/coinpulse/coinpulse-backend/internal/external"
	"github.com/coinpulse/coinpulse-backend/internal/models"
)

// BuildSnapshots combines near-simultaneous fetch results into one
// PriceSnapshot and one VolumeSnapshot sharing the same timestamp.
//
// Cross-rates are home_usd / ref_usd; a zero or missing reference price
// fails the whole cycle rather than emitting a corrupt rate. Enrichment
// (info) is optional: when nil or partial, the price snapshot carries all
// core spot fields and simply omits what is unavailable.
//
// Volume totals are summed over the truncated top-N list only, so they
// match exactly what is stored. This undercounts true total volume when
// more exchanges report; downstream aggregates depend on the stored list
// and the totals agreeing, so keep them computed from the same slice.
func BuildSnapshots(ts time.Time, assets external.Assets, prices map[string]external.SimplePrice,
	info *external.CoinInfo, tickers []external.Ticker) (*models.PriceSnapshot, *models.VolumeSnapshot, error) {

	home, ok := prices[assets.Home.ID]
	if !ok || home.USD <= 0 {
		return nil, nil, fmt.Errorf("missing or invalid spot price for home asset %q", assets.Home.ID)
	}

	spot := map[string]float64{assets.Home.Symbol: home.USD}
	rates := make(map[string]float64, len(assets.Refs))
	for _, ref := range assets.Refs {
		rp, ok := prices[ref.ID]
		if !ok || rp.USD <= 0 {
			return nil, nil, fmt.Errorf("cross-rate %s/%s undefined: reference price missing or zero",
				assets.Home.Symbol, ref.Symbol)
		}
		spot[ref.Symbol] = rp.USD
		rates[ref.Symbol] = home.USD / rp.USD
	}

	priceSnap := &models.PriceSnapshot{
		Timestamp: ts,
		Spot:      spot,
		Rates:     rates,
		Meta:      buildMeta(home, info),
	}

	exchanges, count := NormalizeTickers(tickers, assets.Home.Symbol)

	var totalUSD, totalHome float64
	for _, e := range exchanges {
		totalUSD += e.VolumeUSD
		totalHome += e.VolumeHome
	}

	volSnap := &models.VolumeSnapshot{
		Timestamp:     ts,
		TotalUSD:      totalUSD,
		TotalHome:     totalHome,
		ExchangeCount: count,
		Exchanges:     exchanges,
	}

	return priceSnap, volSnap, nil
}

// buildMeta merges the optional fields riding on /simple/price with the
// enrichment call's market data. Returns nil when nothing is available.
func buildMeta(home external.SimplePrice, info *external.CoinInfo) *models.MarketMeta {
	m := &models.MarketMeta{
		Change24h:    home.USD24hChange,
		Volume24hUSD: home.USD24hVol,
		MarketCapUSD: home.USDMarketCap,
	}

	if info != nil {
		m.Rank = info.MarketCapRank
		md := info.MarketData
		if v, ok := md.ATH["usd"]; ok {
			m.ATHUSD = &v
		}
		if v, ok := md.ATHChangePercentage["usd"]; ok {
			m.ATHChangePercent = &v
		}
		m.Change7d = md.PriceChangePercentage7d
		m.Change30d = md.PriceChangePercentage30d
		if v, ok := md.High24h["usd"]; ok {
			m.High24hUSD = &v
		}
		if v, ok := md.Low24h["usd"]; ok {
			m.Low24hUSD = &v
		}
		if v, ok := md.FullyDilutedValuation["usd"]; ok {
			m.FDVUSD = &v
		}
		m.CirculatingSupply = md.CirculatingSupply
		m.TotalSupply = md.TotalSupply
	}

	if m.Empty() {
		return nil
	}
	return m
}
