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

type VolumeSnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewVolumeSnapshotRepo(pool *pgxpool.Pool) *VolumeSnapshotRepo {
	return &VolumeSnapshotRepo{pool: pool}
}

func (r *VolumeSnapshotRepo) Record(ctx context.Context, snap *models.VolumeSnapshot) (*models.VolumeSnapshot, error) {
	exchanges, err := json.Marshal(snap.Exchanges)
	if err != nil {
		return nil, fmt.Errorf("marshal exchanges: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO volume_snapshots (timestamp, total_usd, total_home, exchange_count, exchanges)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, timestamp, total_usd, total_home, exchange_count, exchanges, created_at`,
		snap.Timestamp, snap.TotalUSD, snap.TotalHome, snap.ExchangeCount, exchanges,
	)
	return scanVolumeSnapshot(row)
}

func (r *VolumeSnapshotRepo) GetLatest(ctx context.Context) (*models.VolumeSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, timestamp, total_usd, total_home, exchange_count, exchanges, created_at
		 FROM volume_snapshots ORDER BY timestamp DESC LIMIT 1`,
	)
	v, err := scanVolumeSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (r *VolumeSnapshotRepo) GetRange(ctx context.Context, start, end time.Time) ([]models.VolumeSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, timestamp, total_usd, total_home, exchange_count, exchanges, created_at
		 FROM volume_snapshots
		 WHERE timestamp >= $1 AND timestamp <= $2
		 ORDER BY timestamp ASC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VolumeSnapshot
	for rows.Next() {
		v, err := scanVolumeSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *VolumeSnapshotRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM volume_snapshots WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func scanVolumeSnapshot(row scannable) (*models.VolumeSnapshot, error) {
	var (
		v         models.VolumeSnapshot
		exchanges []byte
	)
	if err := row.Scan(&v.ID, &v.Timestamp, &v.TotalUSD, &v.TotalHome, &v.ExchangeCount, &exchanges, &v.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exchanges, &v.Exchanges); err != nil {
		return nil, fmt.Errorf("unmarshal exchanges: %w", err)
	}
	return &v, nil
}
