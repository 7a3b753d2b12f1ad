// Package payment models a single gateway payment attempt for a subscription
// billing period.
package payment

import (
	"time"

	"github.com/xraph/remit/id"
	"github.com/xraph/remit/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// IsFinal reports whether the status can no longer change at the gateway.
func (s Status) IsFinal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusExpired
}

type Payment struct {
	types.Entity
	ID               id.PaymentID      `json:"id"`
	SubscriptionID   id.SubscriptionID `json:"subscription_id"`
	TenantID         string            `json:"tenant_id"`
	GatewayPaymentID string            `json:"gateway_payment_id"`
	Amount           types.Money       `json:"amount"`
	Status           Status            `json:"status"`
	PaymentDate      *time.Time        `json:"payment_date,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	PeriodStart      time.Time         `json:"period_start"`
	PeriodEnd        time.Time         `json:"period_end"`
	// Orphaned marks rows created from gateway data because no local record
	// existed when the webhook arrived.
	Orphaned bool `json:"orphaned,omitempty"`
}

// Clone returns a deep copy.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.PaymentDate != nil {
		t := *p.PaymentDate
		c.PaymentDate = &t
	}
	return &c
}
