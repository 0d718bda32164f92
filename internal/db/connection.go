package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Free-tier Postgres plans cap total connections in the low tens, shared
// across every client of the database. One instance of this service holds
// at most a handful: the API read path plus a single writer cycle.
const (
	maxConns        = 4
	minConns        = 1
	maxConnIdleTime = 5 * time.Minute
	maxConnLifetime = 30 * time.Minute
)

func poolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnIdleTime = maxConnIdleTime
	cfg.MaxConnLifetime = maxConnLifetime
	return cfg, nil
}

// Connect opens the snapshot store pool and verifies it with a round-trip
// query before returning.
func Connect(dsn string) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	var now time.Time
	if err := p.QueryRow(ctx, "SELECT NOW()").Scan(&now); err != nil {
		p.Close()
		return nil, fmt.Errorf("verify connection: %w", err)
	}

	fmt.Printf("[DB] Snapshot store ready (%d conns max, server time %s)\n",
		maxConns, now.Format(time.RFC3339))
	return p, nil
}
