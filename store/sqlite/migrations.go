package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the recovery store (SQLite).
var Migrations = migrate.NewGroup("dunning")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_dunning_subscriptions",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dunning_subscriptions (
    id                   TEXT PRIMARY KEY,
    owner_id             TEXT NOT NULL DEFAULT '',
    plan                 TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'active',
    billing_cycle        TEXT NOT NULL DEFAULT 'monthly',
    amount_cents         INTEGER NOT NULL DEFAULT 0,
    currency             TEXT NOT NULL DEFAULT 'usd',
    payment_method       TEXT NOT NULL DEFAULT '',
    current_period_start TEXT NOT NULL DEFAULT (datetime('now')),
    current_period_end   TEXT NOT NULL DEFAULT (datetime('now')),
    auto_renew           INTEGER NOT NULL DEFAULT 1,
    cancelled_at         TEXT,
    expired_at           TEXT,
    metadata             TEXT NOT NULL DEFAULT '{}',
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dunning_subs_owner ON dunning_subscriptions (owner_id);
CREATE INDEX IF NOT EXISTS idx_dunning_subs_status ON dunning_subscriptions (owner_id, status);
CREATE INDEX IF NOT EXISTS idx_dunning_subs_period_end ON dunning_subscriptions (status, auto_renew, current_period_end);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dunning_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dunning_payments",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dunning_payments (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL DEFAULT '',
    amount_cents    INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'usd',
    status          TEXT NOT NULL DEFAULT 'created',
    gateway_txn_id  TEXT NOT NULL DEFAULT '',
    failure_reason  TEXT NOT NULL DEFAULT '',
    error_code      TEXT NOT NULL DEFAULT '',
    paid_at         TEXT,
    failed_at       TEXT,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dunning_payments_sub ON dunning_payments (subscription_id);
CREATE INDEX IF NOT EXISTS idx_dunning_payments_status ON dunning_payments (subscription_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dunning_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dunning_retries",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dunning_retries (
    id                  TEXT PRIMARY KEY,
    subscription_id     TEXT NOT NULL DEFAULT '',
    payment_id          TEXT NOT NULL DEFAULT '',
    attempt_number      INTEGER NOT NULL DEFAULT 1,
    scheduled_at        TEXT NOT NULL DEFAULT (datetime('now')),
    attempted_at        TEXT,
    status              TEXT NOT NULL DEFAULT 'scheduled',
    retry_method        TEXT NOT NULL DEFAULT 'automatic',
    grace_period_active INTEGER NOT NULL DEFAULT 0,
    failure_reason      TEXT NOT NULL DEFAULT '',
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dunning_retries_sub ON dunning_retries (subscription_id, attempt_number);
CREATE INDEX IF NOT EXISTS idx_dunning_retries_payment ON dunning_retries (payment_id);
CREATE INDEX IF NOT EXISTS idx_dunning_retries_due ON dunning_retries (status, scheduled_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dunning_retries_one_scheduled
    ON dunning_retries (subscription_id) WHERE status = 'scheduled';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dunning_retries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dunning_campaigns",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dunning_campaigns (
    id                  TEXT PRIMARY KEY,
    subscription_id     TEXT NOT NULL DEFAULT '',
    campaign_type       TEXT NOT NULL DEFAULT 'payment_recovery',
    current_step        INTEGER NOT NULL DEFAULT 0,
    total_steps         INTEGER NOT NULL DEFAULT 0,
    started_at          TEXT NOT NULL DEFAULT (datetime('now')),
    next_action_date    TEXT NOT NULL DEFAULT (datetime('now')),
    last_step_at        TEXT,
    communications_sent INTEGER NOT NULL DEFAULT 0,
    response_received   INTEGER NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'active',
    resolution          TEXT NOT NULL DEFAULT '',
    resolved_at         TEXT,
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dunning_campaigns_sub ON dunning_campaigns (subscription_id);
CREATE INDEX IF NOT EXISTS idx_dunning_campaigns_due ON dunning_campaigns (status, next_action_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dunning_campaigns_one_active
    ON dunning_campaigns (subscription_id) WHERE status = 'active';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dunning_campaigns`)
				return err
			},
		},
	)
}
