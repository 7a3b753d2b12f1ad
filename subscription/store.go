package subscription

import (
	"context"
	"time"

	"github.com/xraph/remit/id"
)

type Store interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	// GetLatestSubscription returns the tenant's most recently created subscription.
	GetLatestSubscription(ctx context.Context, tenantID string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID string, opts ListOpts) ([]*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error
	// HasActiveSubscription reports whether the tenant has an active or trial
	// subscription whose current period has not ended at the given instant.
	HasActiveSubscription(ctx context.Context, tenantID string, at time.Time) (bool, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
