package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	// prefer prepared statements safely via pgx automatic statement cache
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id UUID PRIMARY KEY,
		stable_id TEXT UNIQUE,
		alias_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS player_aliases (
		id BIGSERIAL PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		alias TEXT NOT NULL,
		first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (player_id, alias)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_player_aliases_alias ON player_aliases (alias)`,
	`CREATE TABLE IF NOT EXISTS moderation_events (
		id UUID PRIMARY KEY,
		action TEXT NOT NULL,
		occurred_at TIMESTAMPTZ,
		server TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL,
		player_id UUID REFERENCES players(id),
		reason TEXT NOT NULL,
		duration_amount INT,
		duration_unit TEXT,
		raw_text TEXT NOT NULL,
		fingerprint TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_player_time ON moderation_events (player_id, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_time ON moderation_events (occurred_at)`,
}

// InitSchema creates the tables and indexes if they do not exist.
func (d *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
