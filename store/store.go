package store

import (
	"context"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/subscription"
)

// Store is the unified storage interface for all Remit entities.
// Entity stores carry prefixed method names so they can be embedded together.
type Store interface {
	plan.Store
	subscription.Store
	payment.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
