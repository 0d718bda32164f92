package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/coinpulse/coinpulse-backend/internal/models"
)

// Reader interfaces mirror the snapshot repos; everything here is read-only
// and side-effect free.

type PriceReader interface {
	GetLatest(ctx context.Context) (*models.PriceSnapshot, error)
	GetRange(ctx context.Context, start, end time.Time) ([]models.PriceSnapshot, error)
}

type VolumeReader interface {
	GetLatest(ctx context.Context) (*models.VolumeSnapshot, error)
	GetRange(ctx context.Context, start, end time.Time) ([]models.VolumeSnapshot, error)
}

// Service derives dashboard views from stored snapshots.
type Service struct {
	prices     PriceReader
	volumes    VolumeReader
	homeSymbol string
	now        func() time.Time
}

func NewService(prices PriceReader, volumes VolumeReader, homeSymbol string) *Service {
	return &Service{
		prices:     prices,
		volumes:    volumes,
		homeSymbol: homeSymbol,
		now:        time.Now,
	}
}

// TimePoint is one chartable (time, value) pair; T is unix milliseconds.
type TimePoint struct {
	T int64   `json:"t"`
	V float64 `json:"v"`
}

type PricesView struct {
	Window        string                `json:"window"`
	Current       *models.PriceSnapshot `json:"current"`
	Historical    []TimePoint           `json:"historical"`
	ChangePercent float64               `json:"changePercent"`
}

// GetPrices returns the latest price snapshot plus its historical series
// restricted to the window. Windows of a day or less key points by exact
// instant (strictly increasing); longer windows key by calendar day.
func (s *Service) GetPrices(ctx context.Context, windowToken string) (*PricesView, error) {
	w, err := ParseWindow(windowToken)
	if err != nil {
		return nil, err
	}

	latest, err := s.prices.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest price snapshot: %w", err)
	}
	if latest == nil {
		return nil, ErrNoData
	}

	now := s.now().UTC()
	snaps, err := s.prices.GetRange(ctx, now.Add(-w.Duration), now)
	if err != nil {
		return nil, fmt.Errorf("price range: %w", err)
	}

	raw := make([]TimePoint, 0, len(snaps))
	for _, p := range snaps {
		raw = append(raw, TimePoint{T: p.Timestamp.UnixMilli(), V: p.Spot[s.homeSymbol]})
	}

	return &PricesView{
		Window:        w.Token,
		Current:       latest,
		Historical:    buildSeries(raw, w),
		ChangePercent: changePercent(raw),
	}, nil
}

type VolumeHistoryView struct {
	Window        string      `json:"window"`
	Historical    []TimePoint `json:"historical"`
	ChangePercent float64     `json:"changePercent"`
}

// GetVolumeHistory returns the total-USD-volume series over the window.
// No snapshot in the window is ErrNoData, the same empty-store contract
// the other read paths follow.
func (s *Service) GetVolumeHistory(ctx context.Context, windowToken string) (*VolumeHistoryView, error) {
	w, err := ParseWindow(windowToken)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	snaps, err := s.volumes.GetRange(ctx, now.Add(-w.Duration), now)
	if err != nil {
		return nil, fmt.Errorf("volume range: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrNoData
	}

	raw := make([]TimePoint, 0, len(snaps))
	for _, v := range snaps {
		raw = append(raw, TimePoint{T: v.Timestamp.UnixMilli(), V: v.TotalUSD})
	}

	return &VolumeHistoryView{
		Window:        w.Token,
		Historical:    buildSeries(raw, w),
		ChangePercent: changePercent(raw),
	}, nil
}

// buildSeries applies the window's keying rule to an ascending raw series.
// Intraday: exact instants, duplicates collapsed so keys stay strictly
// increasing. Longer windows: one point per calendar day (the day's last
// value), keyed at UTC midnight.
func buildSeries(raw []TimePoint, w Window) []TimePoint {
	if w.Intraday() {
		out := make([]TimePoint, 0, len(raw))
		for _, p := range raw {
			if len(out) > 0 && out[len(out)-1].T == p.T {
				continue
			}
			out = append(out, p)
		}
		return out
	}

	out := make([]TimePoint, 0, len(raw))
	for _, p := range raw {
		day := time.UnixMilli(p.T).UTC().Truncate(24 * time.Hour).UnixMilli()
		if len(out) > 0 && out[len(out)-1].T == day {
			out[len(out)-1].V = p.V
			continue
		}
		out = append(out, TimePoint{T: day, V: p.V})
	}
	return out
}

// changePercent computes (latest-earliest)/earliest*100 over the raw points
// in the window. No point in the window means no change: zero, not an
// error.
func changePercent(raw []TimePoint) float64 {
	if len(raw) == 0 {
		return 0
	}
	first := raw[0].V
	last := raw[len(raw)-1].V
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}
