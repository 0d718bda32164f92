package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpulse/coinpulse-backend/internal/models"
)

type PriceSnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewPriceSnapshotRepo(pool *pgxpool.Pool) *PriceSnapshotRepo {
	return &PriceSnapshotRepo{pool: pool}
}

// Record appends a price snapshot. Writes are inserts only; a duplicate
// timestamp violates the unique index and surfaces as an error.
func (r *PriceSnapshotRepo) Record(ctx context.Context, snap *models.PriceSnapshot) (*models.PriceSnapshot, error) {
	spot, err := json.Marshal(snap.Spot)
	if err != nil {
		return nil, fmt.Errorf("marshal spot: %w", err)
	}
	rates, err := json.Marshal(snap.Rates)
	if err != nil {
		return nil, fmt.Errorf("marshal rates: %w", err)
	}
	var meta []byte
	if snap.Meta != nil {
		meta, err = json.Marshal(snap.Meta)
		if err != nil {
			return nil, fmt.Errorf("marshal meta: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO price_snapshots (timestamp, spot, rates, market_meta)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, timestamp, spot, rates, market_meta, created_at`,
		snap.Timestamp, spot, rates, meta,
	)
	return scanPriceSnapshot(row)
}

func (r *PriceSnapshotRepo) GetLatest(ctx context.Context) (*models.PriceSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, timestamp, spot, rates, market_meta, created_at
		 FROM price_snapshots ORDER BY timestamp DESC LIMIT 1`,
	)
	p, err := scanPriceSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// GetRange returns snapshots with timestamp in [start, end], ascending.
func (r *PriceSnapshotRepo) GetRange(ctx context.Context, start, end time.Time) ([]models.PriceSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, timestamp, spot, rates, market_meta, created_at
		 FROM price_snapshots
		 WHERE timestamp >= $1 AND timestamp <= $2
		 ORDER BY timestamp ASC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PriceSnapshot
	for rows.Next() {
		p, err := scanPriceSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PurgeExpired deletes snapshots older than the cutoff. Retention is
// advisory; this runs from a scheduled sweep, not on the write path.
func (r *PriceSnapshotRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM price_snapshots WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPriceSnapshot(row scannable) (*models.PriceSnapshot, error) {
	var (
		p     models.PriceSnapshot
		spot  []byte
		rates []byte
		meta  []byte
	)
	if err := row.Scan(&p.ID, &p.Timestamp, &spot, &rates, &meta, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(spot, &p.Spot); err != nil {
		return nil, fmt.Errorf("unmarshal spot: %w", err)
	}
	if err := json.Unmarshal(rates, &p.Rates); err != nil {
		return nil, fmt.Errorf("unmarshal rates: %w", err)
	}
	if len(meta) > 0 {
		p.Meta = &models.MarketMeta{}
		if err := json.Unmarshal(meta, p.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	return &p, nil
}
