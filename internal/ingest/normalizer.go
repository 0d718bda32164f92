package ingest

import (
	"sort"

	"github.com/coinpulse/coinpulse-backend/internal/external"
	"github.com/coinpulse/coinpulse-backend/internal/models"
)

// MaxStoredExchanges caps the exchange list persisted per VolumeSnapshot.
const MaxStoredExchanges = 20

// NormalizeTickers collapses raw per-trading-pair tickers into one
// aggregated record per exchange. Tickers flagged stale or anomalous are
// excluded entirely. The result is sorted descending by USD volume (stable,
// ties keep encounter order) and truncated to MaxStoredExchanges; the
// returned count is the distinct exchange count before truncation.
func NormalizeTickers(tickers []external.Ticker, homeSymbol string) ([]models.ExchangeVolume, int) {
	type bucket struct {
		vol      models.ExchangeVolume
		pairSeen map[string]bool
	}

	var order []string
	buckets := make(map[string]*bucket)

	for _, t := range tickers {
		if t.IsStale || t.IsAnomaly {
			continue
		}
		name := t.Market.Name
		if name == "" {
			continue
		}

		b := buckets[name]
		if b == nil {
			b = &bucket{
				vol: models.ExchangeVolume{
					Name:       name,
					TrustScore: trustLabel(t.TrustScore),
				},
				pairSeen: make(map[string]bool),
			}
			// first-seen trade URL, kept even if later tickers differ
			if t.TradeURL != "" {
				u := t.TradeURL
				b.vol.TradeURL = &u
			}
			buckets[name] = b
			order = append(order, name)
		}

		b.vol.VolumeUSD += t.ConvertedVolume["usd"]
		b.vol.VolumeHome += t.ConvertedVolume[homeSymbol]

		pair := t.Base + "/" + t.Target
		if !b.pairSeen[pair] {
			b.pairSeen[pair] = true
			b.vol.Pairs = append(b.vol.Pairs, pair)
		}
	}

	out := make([]models.ExchangeVolume, 0, len(order))
	for _, name := range order {
		out = append(out, buckets[name].vol)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VolumeUSD > out[j].VolumeUSD
	})

	total := len(out)
	if len(out) > MaxStoredExchanges {
		out = out[:MaxStoredExchanges]
	}
	return out, total
}

// trustLabel maps the provider's color-coded trust score to the stored
// indicator values.
func trustLabel(score string) string {
	switch score {
	case "green":
		return models.TrustHigh
	case "yellow":
		return models.TrustMedium
	case "red":
		return models.TrustLow
	default:
		return models.TrustUnknown
	}
}
