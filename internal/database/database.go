package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the crimes and users tables if needed. Keeping the
// migration in code lets docker-compose bootstrap a fresh stack without a
// separate migration step.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS crimes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	city TEXT NOT NULL,
	crime_type TEXT NOT NULL,
	details TEXT NOT NULL,
	photo_path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crimes_created_at ON crimes(created_at DESC);
CREATE TABLE IF NOT EXISTS users (
	email TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL
);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
