package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// MaxDistributionSlices caps named slices in the distribution view before
// the remainder folds into "Others".
const MaxDistributionSlices = 10

// MaxSeriesLimit caps how many per-exchange series the history view builds.
const MaxSeriesLimit = 8

const othersName = "Others"
const othersColor = "#9ca3af"

// sliceColors is the stable palette assigned by rank.
var sliceColors = []string{
	"#f7931a", "#627eea", "#14f195", "#e84142", "#f3ba2f",
	"#0052ff", "#8247e5", "#23292f", "#2775ca", "#ff007a",
}

type DistributionSlice struct {
	Name      string  `json:"name"`
	VolumeUSD float64 `json:"volumeUsd"`
	Percent   float64 `json:"percent"`
	Color     string  `json:"color"`
}

type VolumeTotals struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalUSD      float64   `json:"totalVolumeUsd"`
	TotalHome     float64   `json:"totalVolumeHome"`
	ExchangeCount int       `json:"exchangeCount"`
}

type VolumesView struct {
	Totals       VolumeTotals          `json:"totals"`
	Distribution []DistributionSlice   `json:"distribution"`
	Exchanges    []ExchangeVolumeEntry `json:"exchanges"`
}

// ExchangeVolumeEntry is the list row for the latest snapshot's exchanges.
type ExchangeVolumeEntry struct {
	Name       string   `json:"name"`
	VolumeUSD  float64  `json:"volumeUsd"`
	VolumeHome float64  `json:"volumeHome"`
	Pairs      []string `json:"pairs"`
	TrustScore string   `json:"trustScore"`
	TradeURL   *string  `json:"tradeUrl,omitempty"`
}

// GetVolumes builds the distribution view from the latest volume snapshot.
// The first maxSlices exchanges become named slices; the remainder folds
// into a single "Others" bucket. Percentages sum to ~100 up to rounding.
func (s *Service) GetVolumes(ctx context.Context, maxSlices int) (*VolumesView, error) {
	if maxSlices <= 0 || maxSlices > MaxDistributionSlices {
		maxSlices = MaxDistributionSlices
	}

	latest, err := s.volumes.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest volume snapshot: %w", err)
	}
	if latest == nil {
		return nil, ErrNoData
	}

	dist := make([]DistributionSlice, 0, maxSlices+1)
	named := len(latest.Exchanges)
	if named > maxSlices {
		named = maxSlices
	}
	for i := 0; i < named; i++ {
		e := latest.Exchanges[i]
		dist = append(dist, DistributionSlice{
			Name:      e.Name,
			VolumeUSD: e.VolumeUSD,
			Percent:   percentOf(e.VolumeUSD, latest.TotalUSD),
			Color:     sliceColors[i%len(sliceColors)],
		})
	}
	if len(latest.Exchanges) > named {
		var rest float64
		for _, e := range latest.Exchanges[named:] {
			rest += e.VolumeUSD
		}
		dist = append(dist, DistributionSlice{
			Name:      othersName,
			VolumeUSD: rest,
			Percent:   percentOf(rest, latest.TotalUSD),
			Color:     othersColor,
		})
	}

	entries := make([]ExchangeVolumeEntry, len(latest.Exchanges))
	for i, e := range latest.Exchanges {
		entries[i] = ExchangeVolumeEntry{
			Name:       e.Name,
			VolumeUSD:  e.VolumeUSD,
			VolumeHome: e.VolumeHome,
			Pairs:      e.Pairs,
			TrustScore: e.TrustScore,
			TradeURL:   e.TradeURL,
		}
	}

	return &VolumesView{
		Totals: VolumeTotals{
			Timestamp:     latest.Timestamp,
			TotalUSD:      latest.TotalUSD,
			TotalHome:     latest.TotalHome,
			ExchangeCount: latest.ExchangeCount,
		},
		Distribution: dist,
		Exchanges:    entries,
	}, nil
}

type ExchangeSeries struct {
	Name   string      `json:"name"`
	Color  string      `json:"color"`
	Series []TimePoint `json:"series"`
}

type ExchangeHistoryView struct {
	Window     string           `json:"window"`
	Exchanges  []ExchangeSeries `json:"exchanges"`
	Timestamps []int64          `json:"timestamps"`
}

// GetExchangeVolumeHistory builds one aligned series per top-K exchange
// across the window, K picked by total USD volume. An exchange missing from
// a snapshot's stored list contributes zero at that timestamp, so every
// series has the same length as the deduplicated timestamp list.
func (s *Service) GetExchangeVolumeHistory(ctx context.Context, windowToken string, limit int) (*ExchangeHistoryView, error) {
	w, err := ParseWindow(windowToken)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxSeriesLimit {
		limit = MaxSeriesLimit
	}

	now := s.now().UTC()
	snaps, err := s.volumes.GetRange(ctx, now.Add(-w.Duration), now)
	if err != nil {
		return nil, fmt.Errorf("volume range: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrNoData
	}

	totals := make(map[string]float64)
	var order []string
	timestamps := make([]int64, 0, len(snaps))
	perSnap := make([]map[string]float64, 0, len(snaps))

	for _, snap := range snaps {
		ms := snap.Timestamp.UnixMilli()
		if len(timestamps) > 0 && timestamps[len(timestamps)-1] == ms {
			continue
		}
		timestamps = append(timestamps, ms)

		byName := make(map[string]float64, len(snap.Exchanges))
		for _, e := range snap.Exchanges {
			byName[e.Name] += e.VolumeUSD
			if _, seen := totals[e.Name]; !seen {
				order = append(order, e.Name)
			}
			totals[e.Name] += e.VolumeUSD
		}
		perSnap = append(perSnap, byName)
	}

	// ties keep encounter order
	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]] > totals[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}

	series := make([]ExchangeSeries, len(order))
	for i, name := range order {
		pts := make([]TimePoint, len(timestamps))
		for j, ms := range timestamps {
			pts[j] = TimePoint{T: ms, V: perSnap[j][name]}
		}
		series[i] = ExchangeSeries{
			Name:   name,
			Color:  sliceColors[i%len(sliceColors)],
			Series: pts,
		}
	}

	return &ExchangeHistoryView{
		Window:     w.Token,
		Exchanges:  series,
		Timestamps: timestamps,
	}, nil
}

func percentOf(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
