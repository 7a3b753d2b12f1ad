package remit

import (
	"time"

	"github.com/xraph/remit/entitlement"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/subscription"
)

// StatusProjection is a read model of a tenant's current subscription and
// the features its plan grants. The feature helpers are pure and never touch
// the store.
type StatusProjection struct {
	TenantID           string              `json:"tenant_id"`
	SubscriptionID     id.SubscriptionID   `json:"subscription_id"`
	PlanID             id.PlanID           `json:"plan_id"`
	PlanName           string              `json:"plan_name,omitempty"`
	Status             subscription.Status `json:"status"`
	Active             bool                `json:"active"`
	CurrentPeriodStart time.Time           `json:"current_period_start"`
	CurrentPeriodEnd   time.Time           `json:"current_period_end"`
	TrialEnd           *time.Time          `json:"trial_end,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	Features           []plan.Feature      `json:"features"`
}

func project(sub *subscription.Subscription, p *plan.Plan, now time.Time) *StatusProjection {
	sp := &StatusProjection{
		TenantID:           sub.TenantID,
		SubscriptionID:     sub.ID,
		PlanID:             sub.PlanID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		TrialEnd:           sub.TrialEnd,
		CancelledAt:        sub.CancelledAt,
		Features:           []plan.Feature{},
	}
	sp.Active = (sub.Status == subscription.StatusActive || sub.Status == subscription.StatusTrial) &&
		sub.CurrentPeriodEnd.After(now)

	if p != nil {
		sp.PlanName = p.Name
		sp.Features = append(sp.Features, p.Features...)
	}
	return sp
}

// FeatureAvailable reports whether the plan grants the feature.
func (s *StatusProjection) FeatureAvailable(key string) bool {
	if s == nil {
		return false
	}
	f := plan.FindFeature(s.Features, key)
	return f != nil && f.Enabled()
}

// FeatureLimit returns the feature's limit, or 0 when the plan lacks it.
// A limit of plan.Unlimited means no cap.
func (s *StatusProjection) FeatureLimit(key string) int64 {
	if s == nil {
		return 0
	}
	if f := plan.FindFeature(s.Features, key); f != nil {
		return f.Limit
	}
	return 0
}

// Unlimited reports whether the feature limit is exactly plan.Unlimited.
func (s *StatusProjection) Unlimited(key string) bool {
	if s == nil {
		return false
	}
	f := plan.FindFeature(s.Features, key)
	return f != nil && f.IsUnlimited()
}

// Check reports whether the tenant may use one more unit of key given its
// current usage. Inactive subscriptions are always denied.
func (s *StatusProjection) Check(key string, used int64) entitlement.Result {
	if s == nil || !s.Active {
		return entitlement.Denied(key, used)
	}
	return entitlement.Check(s.Features, key, used)
}

// ExpiringSoon reports whether the trial (for trial subscriptions) or the
// current period ends within the given number of days from now. Already
// expired subscriptions are not "expiring soon".
func (s *StatusProjection) ExpiringSoon(now time.Time, days int) bool {
	if s == nil {
		return false
	}
	end := s.CurrentPeriodEnd
	if s.Status == subscription.StatusTrial && s.TrialEnd != nil {
		end = *s.TrialEnd
	}
	if !end.After(now) {
		return false
	}
	return end.Sub(now) <= time.Duration(days)*24*time.Hour
}
