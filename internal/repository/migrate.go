package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                  UUID PRIMARY KEY,
		order_number        TEXT NOT NULL UNIQUE,
		requester_id        TEXT NOT NULL,
		driver_id           TEXT,
		pickup              JSONB NOT NULL,
		destination         JSONB NOT NULL,
		stops               JSONB NOT NULL DEFAULT '[]',
		distance_km         DOUBLE PRECISION NOT NULL,
		duration_min        INTEGER NOT NULL,
		fare                JSONB NOT NULL,
		payment             JSONB NOT NULL,
		status              TEXT NOT NULL,
		cancelled_by        TEXT,
		cancellation_reason TEXT,
		rating              JSONB NOT NULL DEFAULT '{}',
		notes               TEXT NOT NULL DEFAULT '',
		scheduled_at        TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS orders_pending_pickup_idx
		ON orders (((pickup->>'lat')::float8), ((pickup->>'lon')::float8))
		WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS order_timeline (
		order_id   UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		status     TEXT NOT NULL,
		at         TIMESTAMPTZ NOT NULL,
		actor_id   TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		note       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (order_id, seq)
	)`,
}

// Migrate creates the order tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
