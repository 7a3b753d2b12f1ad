package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Remit store.
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
    price_amount BIGINT NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT 'eur',
    interval     TEXT NOT NULL DEFAULT 'monthly',
    status       TEXT NOT NULL DEFAULT 'draft',
    trial_days   INT NOT NULL DEFAULT 0,
    features     JSONB NOT NULL DEFAULT '[]',
    metadata     JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    current_period_start    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    current_period_end      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    trial_end               TIMESTAMPTZ,
    cancelled_at            TIMESTAMPTZ,
    gateway_subscription_id TEXT NOT NULL DEFAULT '',
    gateway_customer_id     TEXT NOT NULL DEFAULT '',
    metadata                JSONB NOT NULL DEFAULT '{}',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_subs_tenant_created ON remit_subscriptions (tenant_id, created_at DESC);
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
    amount             BIGINT NOT NULL DEFAULT 0,
    currency           TEXT NOT NULL DEFAULT 'eur',
    status             TEXT NOT NULL DEFAULT 'pending',
    payment_date       TIMESTAMPTZ,
    failure_reason     TEXT NOT NULL DEFAULT '',
    period_start       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    period_end         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    orphaned           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_payments_gateway ON remit_payments (gateway_payment_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_remit_payments_subscription ON remit_payments (subscription_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_remit_payments_pending ON remit_payments (created_at) WHERE status = 'pending';
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
