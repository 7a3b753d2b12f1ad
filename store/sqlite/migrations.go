package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Remit store (SQLite).
var Migrations = migrate.NewGroup("remit")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_remit_plans",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_plans (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    slug         TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    price_amount INTEGER NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT 'eur',
    interval     TEXT NOT NULL DEFAULT 'monthly',
    status       TEXT NOT NULL DEFAULT 'draft',
    trial_days   INTEGER NOT NULL DEFAULT 0,
    features     TEXT NOT NULL DEFAULT '[]',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_plans_status_price ON remit_plans (status, price_amount);
CREATE INDEX IF NOT EXISTS idx_remit_plans_name ON remit_plans (name);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_subscriptions",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_subscriptions (
    id                      TEXT PRIMARY KEY,
    tenant_id               TEXT NOT NULL,
    plan_id                 TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL DEFAULT 'unpaid',
    current_period_start    TEXT NOT NULL DEFAULT (datetime('now')),
    current_period_end      TEXT NOT NULL DEFAULT (datetime('now')),
    trial_end               TEXT,
    cancelled_at            TEXT,
    gateway_subscription_id TEXT NOT NULL DEFAULT '',
    gateway_customer_id     TEXT NOT NULL DEFAULT '',
    metadata                TEXT NOT NULL DEFAULT '{}',
    created_at              TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at              TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_subs_tenant_created ON remit_subscriptions (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_remit_subs_tenant_status ON remit_subscriptions (tenant_id, status, current_period_end);
CREATE INDEX IF NOT EXISTS idx_remit_subs_plan ON remit_subscriptions (plan_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_payments",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_payments (
    id                 TEXT PRIMARY KEY,
    subscription_id    TEXT NOT NULL DEFAULT '',
    tenant_id          TEXT NOT NULL DEFAULT '',
    gateway_payment_id TEXT NOT NULL,
    amount             INTEGER NOT NULL DEFAULT 0,
    currency           TEXT NOT NULL DEFAULT 'eur',
    status             TEXT NOT NULL DEFAULT 'pending',
    payment_date       TEXT,
    failure_reason     TEXT NOT NULL DEFAULT '',
    period_start       TEXT NOT NULL DEFAULT (datetime('now')),
    period_end         TEXT NOT NULL DEFAULT (datetime('now')),
    orphaned           INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_payments_gateway ON remit_payments (gateway_payment_id, created_at);
CREATE INDEX IF NOT EXISTS idx_remit_payments_subscription ON remit_payments (subscription_id, created_at);
CREATE INDEX IF NOT EXISTS idx_remit_payments_status ON remit_payments (status, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_payments`)
				return err
			},
		},
	)
}
