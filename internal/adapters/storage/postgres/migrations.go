package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RunMigrations aplica el schema. Cada sentencia es idempotente.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("postgres: migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('BUSY', 'SWAPPABLE', 'SWAPPED')),
		original_event_id TEXT NULL,
		original_owner JSONB NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (start_time < end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS events_owner_start_idx ON events (owner_user_id, start_time)`,
	`CREATE INDEX IF NOT EXISTS events_status_start_idx ON events (status, start_time)`,

	`CREATE TABLE IF NOT EXISTS swap_requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		requester_event_id TEXT NOT NULL,
		target_user_id TEXT NOT NULL,
		target_event_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'ACCEPTED', 'REJECTED')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (requester_id <> target_user_id),
		CHECK (requester_event_id <> target_event_id)
	)`,
	// A lo sumo un PENDING por par de eventos.
	`CREATE UNIQUE INDEX IF NOT EXISTS swap_requests_pending_pair_uidx
		ON swap_requests (requester_event_id, target_event_id)
		WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS swap_requests_target_idx ON swap_requests (target_user_id, status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS swap_requests_requester_idx ON swap_requests (requester_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS swap_requests_req_event_idx ON swap_requests (requester_event_id) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS swap_requests_tgt_event_idx ON swap_requests (target_event_id) WHERE status = 'PENDING'`,

	`CREATE TABLE IF NOT EXISTS swap_history (
		id TEXT PRIMARY KEY,
		swap_request_id TEXT NOT NULL UNIQUE,
		user_a_id TEXT NOT NULL,
		event_a_id TEXT NOT NULL,
		snapshot_a JSONB NOT NULL,
		user_b_id TEXT NOT NULL,
		event_b_id TEXT NOT NULL,
		snapshot_b JSONB NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS swap_history_user_a_idx ON swap_history (user_a_id, completed_at DESC)`,
	`CREATE INDEX IF NOT EXISTS swap_history_user_b_idx ON swap_history (user_b_id, completed_at DESC)`,

	`CREATE TABLE IF NOT EXISTS user_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
