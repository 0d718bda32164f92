package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS price_snapshots (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL UNIQUE,
		spot JSONB NOT NULL,
		rates JSONB NOT NULL,
		market_meta JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_snapshots_timestamp ON price_snapshots (timestamp)`,
	`CREATE TABLE IF NOT EXISTS volume_snapshots (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL UNIQUE,
		total_usd DOUBLE PRECISION NOT NULL,
		total_home DOUBLE PRECISION NOT NULL,
		exchange_count INTEGER NOT NULL,
		exchanges JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_volume_snapshots_timestamp ON volume_snapshots (timestamp)`,
	`CREATE TABLE IF NOT EXISTS usage_metadata (
		key TEXT PRIMARY KEY,
		daily_calls INTEGER NOT NULL DEFAULT 0,
		monthly_calls INTEGER NOT NULL DEFAULT 0,
		last_reset DATE NOT NULL DEFAULT CURRENT_DATE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the snapshot and usage tables when they do not
// exist. Statements are idempotent so this runs on every startup.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	fmt.Println("[DB] Schema verified")
	return nil
}
