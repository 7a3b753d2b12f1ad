package plan

import (
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/types"
)

// StarterName is the name of the lowest tier plan, used as the trial default.
const StarterName = "Starter"

// Unlimited is the feature limit sentinel meaning "no cap".
const Unlimited int64 = -1

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDraft    Status = "draft"
)

type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

type Plan struct {
	types.Entity
	ID          id.PlanID         `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Price       types.Money       `json:"price"`
	Interval    Interval          `json:"interval"`
	Status      Status            `json:"status"`
	TrialDays   int               `json:"trial_days"`
	Features    []Feature         `json:"features"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Feature struct {
	Key   string      `json:"key"`
	Name  string      `json:"name"`
	Type  FeatureType `json:"type"`
	Limit int64       `json:"limit"`
}

type FeatureType string

const (
	FeatureBoolean FeatureType = "boolean"
	FeatureLimit   FeatureType = "limit"
)

func (p *Plan) FindFeature(key string) *Feature {
	return FindFeature(p.Features, key)
}

// FindFeature returns the feature with the given key, or nil.
func FindFeature(features []Feature, key string) *Feature {
	for i := range features {
		if features[i].Key == key {
			return &features[i]
		}
	}
	return nil
}

// Enabled reports whether the feature grants anything at all. Boolean
// features are on when their limit is positive; limit features are on
// unless capped at zero.
func (f Feature) Enabled() bool {
	if f.Type == FeatureBoolean {
		return f.Limit > 0
	}
	return f.Limit != 0
}

// IsUnlimited reports whether the limit is exactly the unlimited sentinel.
func (f Feature) IsUnlimited() bool {
	return f.Limit == Unlimited
}

// Clone returns a deep copy.
func (p *Plan) Clone() *Plan {
	c := *p
	if p.Features != nil {
		c.Features = append([]Feature(nil), p.Features...)
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
