package subscription

import (
	"fmt"
	"time"

	"github.com/xraph/remit/id"
	"github.com/xraph/remit/types"
)

type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusPastDue   Status = "past_due"
	StatusUnpaid    Status = "unpaid"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusCancelled, StatusExpired, StatusPastDue, StatusUnpaid:
		return true
	}
	return false
}

// CanTransition reports whether a status update may move a subscription
// from one status to another. Cancelled is terminal; re-cancelling is allowed.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == StatusCancelled {
		return to == StatusCancelled
	}
	return true
}

type Subscription struct {
	types.Entity
	ID                    id.SubscriptionID `json:"id"`
	TenantID              string            `json:"tenant_id"`
	PlanID                id.PlanID         `json:"plan_id"`
	Status                Status            `json:"status"`
	CurrentPeriodStart    time.Time         `json:"current_period_start"`
	CurrentPeriodEnd      time.Time         `json:"current_period_end"`
	TrialEnd              *time.Time        `json:"trial_end,omitempty"`
	CancelledAt           *time.Time        `json:"cancelled_at,omitempty"`
	GatewaySubscriptionID string            `json:"gateway_subscription_id,omitempty"`
	GatewayCustomerID     string            `json:"gateway_customer_id,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

// Validate checks the invariants every stored subscription must hold.
func (s *Subscription) Validate() error {
	if s.TenantID == "" {
		return fmt.Errorf("subscription: tenant id is required")
	}
	if !s.Status.Valid() {
		return fmt.Errorf("subscription: unknown status %q", s.Status)
	}
	if !s.CurrentPeriodEnd.After(s.CurrentPeriodStart) {
		return fmt.Errorf("subscription: period end %s must be after start %s",
			s.CurrentPeriodEnd.Format(time.RFC3339), s.CurrentPeriodStart.Format(time.RFC3339))
	}
	if s.Status == StatusTrial && s.TrialEnd == nil {
		return fmt.Errorf("subscription: trial requires a trial end")
	}
	return nil
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.TrialEnd != nil {
		t := *s.TrialEnd
		c.TrialEnd = &t
	}
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		c.CancelledAt = &t
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
