package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/remit/id"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/subscription"
	"github.com/xraph/remit/types"
)

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:remit_plans"`

	ID          string            `grove:"id,pk"        bson:"_id"`
	Name        string            `grove:"name"         bson:"name"`
	Slug        string            `grove:"slug"         bson:"slug"`
	Description string            `grove:"description"  bson:"description"`
	PriceAmount int64             `grove:"price_amount" bson:"price_amount"`
	Currency    string            `grove:"currency"     bson:"currency"`
	Interval    string            `grove:"interval"     bson:"interval"`
	Status      string            `grove:"status"       bson:"status"`
	TrialDays   int               `grove:"trial_days"   bson:"trial_days"`
	Features    []featureModel    `grove:"features"     bson:"features"`
	Metadata    map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"   bson:"updated_at"`
}

type featureModel struct {
	Key   string `bson:"key"`
	Name  string `bson:"name"`
	Type  string `bson:"type"`
	Limit int64  `bson:"limit"`
}

func toPlanModel(p *plan.Plan) *planModel {
	features := make([]featureModel, len(p.Features))
	for i, f := range p.Features {
		features[i] = featureModel{
			Key:   f.Key,
			Name:  f.Name,
			Type:  string(f.Type),
			Limit: f.Limit,
		}
	}

	return &planModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		PriceAmount: p.Price.Amount,
		Currency:    p.Price.Currency,
		Interval:    string(p.Interval),
		Status:      string(p.Status),
		TrialDays:   p.TrialDays,
		Features:    features,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*plan.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}

	features := make([]plan.Feature, len(m.Features))
	for i, f := range m.Features {
		features[i] = plan.Feature{
			Key:   f.Key,
			Name:  f.Name,
			Type:  plan.FeatureType(f.Type),
			Limit: f.Limit,
		}
	}

	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          planID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		Price:       types.Money{Amount: m.PriceAmount, Currency: m.Currency},
		Interval:    plan.Interval(m.Interval),
		Status:      plan.Status(m.Status),
		TrialDays:   m.TrialDays,
		Features:    features,
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:remit_subscriptions"`

	ID                    string            `grove:"id,pk"                   bson:"_id"`
	TenantID              string            `grove:"tenant_id"               bson:"tenant_id"`
	PlanID                string            `grove:"plan_id"                 bson:"plan_id"`
	Status                string            `grove:"status"                  bson:"status"`
	CurrentPeriodStart    time.Time         `grove:"current_period_start"    bson:"current_period_start"`
	CurrentPeriodEnd      time.Time         `grove:"current_period_end"      bson:"current_period_end"`
	TrialEnd              *time.Time        `grove:"trial_end"               bson:"trial_end,omitempty"`
	CancelledAt           *time.Time        `grove:"cancelled_at"            bson:"cancelled_at,omitempty"`
	GatewaySubscriptionID string            `grove:"gateway_subscription_id" bson:"gateway_subscription_id"`
	GatewayCustomerID     string            `grove:"gateway_customer_id"     bson:"gateway_customer_id"`
	Metadata              map[string]string `grove:"metadata"                bson:"metadata,omitempty"`
	CreatedAt             time.Time         `grove:"created_at"              bson:"created_at"`
	UpdatedAt             time.Time         `grove:"updated_at"              bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                    s.ID.String(),
		TenantID:              s.TenantID,
		PlanID:                s.PlanID.String(),
		Status:                string(s.Status),
		CurrentPeriodStart:    s.CurrentPeriodStart,
		CurrentPeriodEnd:      s.CurrentPeriodEnd,
		TrialEnd:              s.TrialEnd,
		CancelledAt:           s.CancelledAt,
		GatewaySubscriptionID: s.GatewaySubscriptionID,
		GatewayCustomerID:     s.GatewayCustomerID,
		Metadata:              s.Metadata,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	planID, err := parseOptional(m.PlanID, id.ParsePlanID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                    subID,
		TenantID:              m.TenantID,
		PlanID:                planID,
		Status:                subscription.Status(m.Status),
		CurrentPeriodStart:    m.CurrentPeriodStart,
		CurrentPeriodEnd:      m.CurrentPeriodEnd,
		TrialEnd:              m.TrialEnd,
		CancelledAt:           m.CancelledAt,
		GatewaySubscriptionID: m.GatewaySubscriptionID,
		GatewayCustomerID:     m.GatewayCustomerID,
		Metadata:              m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:remit_payments"`

	ID               string     `grove:"id,pk"              bson:"_id"`
	SubscriptionID   string     `grove:"subscription_id"    bson:"subscription_id"`
	TenantID         string     `grove:"tenant_id"          bson:"tenant_id"`
	GatewayPaymentID string     `grove:"gateway_payment_id" bson:"gateway_payment_id"`
	Amount           int64      `grove:"amount"             bson:"amount"`
	Currency         string     `grove:"currency"           bson:"currency"`
	Status           string     `grove:"status"             bson:"status"`
	PaymentDate      *time.Time `grove:"payment_date"       bson:"payment_date,omitempty"`
	FailureReason    string     `grove:"failure_reason"     bson:"failure_reason"`
	PeriodStart      time.Time  `grove:"period_start"       bson:"period_start"`
	PeriodEnd        time.Time  `grove:"period_end"         bson:"period_end"`
	Orphaned         bool       `grove:"orphaned"           bson:"orphaned"`
	CreatedAt        time.Time  `grove:"created_at"         bson:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"         bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:               p.ID.String(),
		SubscriptionID:   p.SubscriptionID.String(),
		TenantID:         p.TenantID,
		GatewayPaymentID: p.GatewayPaymentID,
		Amount:           p.Amount.Amount,
		Currency:         p.Amount.Currency,
		Status:           string(p.Status),
		PaymentDate:      p.PaymentDate,
		FailureReason:    p.FailureReason,
		PeriodStart:      p.PeriodStart,
		PeriodEnd:        p.PeriodEnd,
		Orphaned:         p.Orphaned,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := parseOptional(m.SubscriptionID, id.ParseSubscriptionID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               payID,
		SubscriptionID:   subID,
		TenantID:         m.TenantID,
		GatewayPaymentID: m.GatewayPaymentID,
		Amount:           types.Money{Amount: m.Amount, Currency: m.Currency},
		Status:           payment.Status(m.Status),
		PaymentDate:      m.PaymentDate,
		FailureReason:    m.FailureReason,
		PeriodStart:      m.PeriodStart,
		PeriodEnd:        m.PeriodEnd,
		Orphaned:         m.Orphaned,
	}, nil
}

func parseOptional(s string, parse func(string) (id.ID, error)) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return parse(s)
}
