package entitlement_test

import (
	"testing"

	"github.com/xraph/remit/entitlement"
	"github.com/xraph/remit/plan"
)

func TestCheck(t *testing.T) {
	features := []plan.Feature{
		{Key: "online_booking", Type: plan.FeatureBoolean, Limit: 1},
		{Key: "sms", Type: plan.FeatureBoolean, Limit: 0},
		{Key: "staff", Type: plan.FeatureLimit, Limit: 3},
		{Key: "appointments", Type: plan.FeatureLimit, Limit: plan.Unlimited},
	}

	tests := []struct {
		name      string
		key       string
		used      int64
		allowed   bool
		remaining int64
		reason    string
	}{
		{"boolean on", "online_booking", 0, true, 0, ""},
		{"boolean off", "sms", 0, false, 0, entitlement.ReasonNotInPlan},
		{"missing", "reports", 0, false, 0, entitlement.ReasonNotInPlan},
		{"under limit", "staff", 2, true, 1, ""},
		{"at limit", "staff", 3, false, 0, entitlement.ReasonLimitReached},
		{"over limit", "staff", 5, false, 0, entitlement.ReasonLimitReached},
		{"unlimited", "appointments", 10000, true, -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entitlement.Check(features, tt.key, tt.used)
			if got.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.allowed)
			}
			if got.Remaining != tt.remaining {
				t.Errorf("Remaining = %d, want %d", got.Remaining, tt.remaining)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
			if got.Feature != tt.key || got.Used != tt.used {
				t.Errorf("Feature/Used = %q/%d", got.Feature, got.Used)
			}
		})
	}
}

func TestDenied(t *testing.T) {
	got := entitlement.Denied("staff", 1)
	if got.Allowed || got.Reason != entitlement.ReasonNoSubscription {
		t.Errorf("Denied = %+v", got)
	}
}
