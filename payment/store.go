package payment

import (
	"context"
	"time"

	"github.com/xraph/remit/id"
)

type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, payID id.PaymentID) (*Payment, error)
	// GetPaymentByGatewayID returns the newest payment carrying the gateway
	// payment id. Duplicate rows are tolerated.
	GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*Payment, error)
	ListPayments(ctx context.Context, subID id.SubscriptionID, opts ListOpts) ([]*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	// ListStalePending returns pending payments created before the cutoff,
	// oldest first.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*Payment, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
