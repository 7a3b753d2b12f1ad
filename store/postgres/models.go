package postgres

import (
	"encoding/json"
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

	ID          string            `grove:"id,pk"`
	Name        string            `grove:"name"`
	Slug        string            `grove:"slug"`
	Description string            `grove:"description"`
	PriceAmount int64             `grove:"price_amount"`
	Currency    string            `grove:"currency"`
	Interval    string            `grove:"interval"`
	Status      string            `grove:"status"`
	TrialDays   int               `grove:"trial_days"`
	Features    json.RawMessage   `grove:"features,type:jsonb"`
	Metadata    map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt   time.Time         `grove:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	features, _ := json.Marshal(p.Features) //nolint:errcheck // best-effort

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

	var features []plan.Feature
	if len(m.Features) > 0 {
		_ = json.Unmarshal(m.Features, &features) //nolint:errcheck // best-effort
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

	ID                    string            `grove:"id,pk"`
	TenantID              string            `grove:"tenant_id"`
	PlanID                string            `grove:"plan_id"`
	Status                string            `grove:"status"`
	CurrentPeriodStart    time.Time         `grove:"current_period_start"`
	CurrentPeriodEnd      time.Time         `grove:"current_period_end"`
	TrialEnd              *time.Time        `grove:"trial_end"`
	CancelledAt           *time.Time        `grove:"cancelled_at"`
	GatewaySubscriptionID string            `grove:"gateway_subscription_id"`
	GatewayCustomerID     string            `grove:"gateway_customer_id"`
	Metadata              map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt             time.Time         `grove:"created_at"`
	UpdatedAt             time.Time         `grove:"updated_at"`
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

	ID               string     `grove:"id,pk"`
	SubscriptionID   string     `grove:"subscription_id"`
	TenantID         string     `grove:"tenant_id"`
	GatewayPaymentID string     `grove:"gateway_payment_id"`
	Amount           int64      `grove:"amount"`
	Currency         string     `grove:"currency"`
	Status           string     `grove:"status"`
	PaymentDate      *time.Time `grove:"payment_date"`
	FailureReason    string     `grove:"failure_reason"`
	PeriodStart      time.Time  `grove:"period_start"`
	PeriodEnd        time.Time  `grove:"period_end"`
	Orphaned         bool       `grove:"orphaned"`
	CreatedAt        time.Time  `grove:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"`
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

// parseOptional parses a foreign key column that may be empty.
func parseOptional(s string, parse func(string) (id.ID, error)) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return parse(s)
}
