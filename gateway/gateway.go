// Package gateway defines the contract between the reconciliation engine and
// a hosted payment gateway. The engine never interprets raw gateway statuses
// itself; it asks the Client for the internal status and the success and
// failure predicates.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/types"
)

// Client is implemented by every gateway integration.
type Client interface {
	// GetPayment fetches the authoritative payment state.
	GetPayment(ctx context.Context, gatewayPaymentID string) (*Payment, error)
	// InternalStatus maps a gateway status to the local payment status.
	InternalStatus(status string) payment.Status
	IsPaymentSuccessful(p *Payment) bool
	IsPaymentFailed(p *Payment) bool
}

// Amount is a decimal amount as gateways transmit it ("29.00" EUR).
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Money converts the decimal amount to minor units.
func (a Amount) Money() (types.Money, error) {
	return types.ParseMajor(a.Value, a.Currency)
}

// AmountFrom formats m the way gateways expect.
func AmountFrom(m types.Money) Amount {
	return Amount{Value: m.FormatMajor(), Currency: m.CurrencyCode()}
}

// Metadata is attached to a payment when it is created and echoed back by
// the gateway. The JSON names are part of the wire contract.
type Metadata struct {
	TenantID       string `json:"tenantId"`
	PlanID         string `json:"planId"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// Complete reports whether the fields required for reconciliation are set.
func (m Metadata) Complete() bool {
	return m.TenantID != "" && m.PlanID != ""
}

// UnmarshalJSON accepts any JSON value; anything that is not an object
// decodes to empty metadata so that reconciliation can reject it cleanly.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	type plain Metadata
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil //nolint:nilerr // malformed metadata is treated as absent
	}
	*m = Metadata(p)
	return nil
}

// Details holds method-specific payment details.
type Details struct {
	FailureReason string `json:"failureReason,omitempty"`
}

// Payment is the gateway's view of a payment.
type Payment struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Amount         Amount     `json:"amount"`
	AmountRefunded *Amount    `json:"amountRefunded,omitempty"`
	Description    string     `json:"description,omitempty"`
	CustomerID     string     `json:"customerId,omitempty"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	Metadata       Metadata   `json:"metadata"`
	Details        Details    `json:"details"`
	CreatedAt      time.Time  `json:"createdAt"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
}

// GatewaySubscriptionID returns the gateway's recurring subscription id when
// the payment belongs to one, otherwise a reference derived from the
// customer. Empty when neither is known.
func (p *Payment) GatewaySubscriptionID() string {
	if p.SubscriptionID != "" {
		return p.SubscriptionID
	}
	if p.CustomerID != "" {
		return "sub_" + p.CustomerID
	}
	return ""
}

// FailureReason returns the gateway's failure reason, or a description of
// the terminal status when the gateway gave none.
func (p *Payment) FailureReason() string {
	if p.Details.FailureReason != "" {
		return p.Details.FailureReason
	}
	return "payment " + p.Status
}
