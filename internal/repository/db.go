package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the part of *pgxpool.Pool the repositories use.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS operators (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT 'operator',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS unlinked_subscriptions (
			id                      TEXT PRIMARY KEY,
			platform                TEXT NOT NULL,
			product_id              TEXT NOT NULL,
			transaction_id          TEXT NOT NULL DEFAULT '',
			original_transaction_id TEXT NOT NULL DEFAULT '',
			order_id                TEXT NOT NULL DEFAULT '',
			purchase_time           TIMESTAMPTZ,
			expiry_time             TIMESTAMPTZ,
			auto_renewing           BOOLEAN NOT NULL DEFAULT FALSE,
			environment             TEXT NOT NULL DEFAULT '',
			is_mock                 BOOLEAN NOT NULL DEFAULT FALSE,
			user_email              TEXT NOT NULL DEFAULT '',
			sealed_receipt          TEXT NOT NULL,
			awaiting_user_link      BOOLEAN NOT NULL DEFAULT TRUE,
			link_expiration_time    TIMESTAMPTZ NOT NULL,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                      TEXT PRIMARY KEY,
			platform                TEXT NOT NULL,
			product_id              TEXT NOT NULL,
			transaction_id          TEXT NOT NULL DEFAULT '',
			original_transaction_id TEXT NOT NULL DEFAULT '',
			order_id                TEXT NOT NULL DEFAULT '',
			purchase_time           TIMESTAMPTZ,
			expiry_time             TIMESTAMPTZ,
			auto_renewing           BOOLEAN NOT NULL DEFAULT FALSE,
			environment             TEXT NOT NULL DEFAULT '',
			is_mock                 BOOLEAN NOT NULL DEFAULT FALSE,
			linked_user_id          TEXT NOT NULL,
			linked_email            TEXT NOT NULL DEFAULT '',
			linked_at               TIMESTAMPTZ NOT NULL,
			is_active               BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_linked_user_id ON subscriptions(linked_user_id);

		CREATE TABLE IF NOT EXISTS user_profiles (
			user_id             TEXT PRIMARY KEY,
			email               TEXT NOT NULL DEFAULT '',
			subscription_id     TEXT NOT NULL DEFAULT '',
			product_id          TEXT NOT NULL DEFAULT '',
			is_premium          BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_expiry TIMESTAMPTZ,
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
