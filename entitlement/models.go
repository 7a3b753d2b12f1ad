// Package entitlement answers "may this tenant use one more of X" against
// the feature bag of its current plan.
package entitlement

import "github.com/xraph/remit/plan"

// Reasons reported on denied checks.
const (
	ReasonNoSubscription = "no active subscription"
	ReasonNotInPlan      = "feature not included in plan"
	ReasonLimitReached   = "plan limit reached"
)

type Result struct {
	Allowed   bool   `json:"allowed"`
	Feature   string `json:"feature"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Check evaluates key against features given current usage. Boolean
// features ignore used. Remaining is -1 for unlimited features.
func Check(features []plan.Feature, key string, used int64) Result {
	res := Result{Feature: key, Used: used}

	f := plan.FindFeature(features, key)
	if f == nil || !f.Enabled() {
		res.Reason = ReasonNotInPlan
		return res
	}

	res.Limit = f.Limit
	switch {
	case f.IsUnlimited():
		res.Allowed = true
		res.Unlimited = true
		res.Remaining = -1
	case f.Type == plan.FeatureBoolean:
		res.Allowed = true
	default:
		res.Remaining = max(f.Limit-used, 0)
		res.Allowed = used < f.Limit
		if !res.Allowed {
			res.Reason = ReasonLimitReached
		}
	}
	return res
}

// Denied returns the result for a tenant without an active subscription.
func Denied(key string, used int64) Result {
	return Result{Feature: key, Used: used, Reason: ReasonNoSubscription}
}
