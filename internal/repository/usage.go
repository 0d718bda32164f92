package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpulse/coinpulse-backend/internal/models"
)

// usageKey is the fixed singleton key for the usage record.
const usageKey = "provider"

type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

func (r *UsageRepo) Get(ctx context.Context) (*models.Usage, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT daily_calls, monthly_calls, last_reset, updated_at
		 FROM usage_metadata WHERE key = $1`,
		usageKey,
	)
	var u models.Usage
	if err := row.Scan(&u.DailyCalls, &u.MonthlyCalls, &u.LastReset, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// BumpCalls adds n provider calls to the singleton record, rolling the
// daily counter at day boundaries and the monthly counter at month
// boundaries. The roll is decided in SQL so concurrent cycles cannot lose
// updates.
func (r *UsageRepo) BumpCalls(ctx context.Context, n int) (*models.Usage, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO usage_metadata (key, daily_calls, monthly_calls, last_reset, updated_at)
		 VALUES ($1, $2, $2, CURRENT_DATE, NOW())
		 ON CONFLICT (key) DO UPDATE SET
		   daily_calls = CASE
		     WHEN usage_metadata.last_reset < CURRENT_DATE THEN EXCLUDED.daily_calls
		     ELSE usage_metadata.daily_calls + EXCLUDED.daily_calls
		   END,
		   monthly_calls = CASE
		     WHEN date_trunc('month', usage_metadata.last_reset) < date_trunc('month', CURRENT_DATE) THEN EXCLUDED.monthly_calls
		     ELSE usage_metadata.monthly_calls + EXCLUDED.monthly_calls
		   END,
		   last_reset = CURRENT_DATE,
		   updated_at = NOW()
		 RETURNING daily_calls, monthly_calls, last_reset, updated_at`,
		usageKey, n,
	)
	var u models.Usage
	if err := row.Scan(&u.DailyCalls, &u.MonthlyCalls, &u.LastReset, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
