package mollie_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/gateway/mollie"
	"github.com/xraph/remit/payment"
)

const paidPayment = `{
  "resource": "payment",
  "id": "tr_WDqYK6vllg",
  "status": "paid",
  "amount": {"value": "29.00", "currency": "EUR"},
  "customerId": "cst_8wmqcHMN4U",
  "createdAt": "2026-03-20T09:13:37+00:00",
  "paidAt": "2026-03-20T09:14:02+00:00",
  "metadata": {"tenantId": "T1", "planId": "plan_01hx", "subscriptionId": "sub_01hx"},
  "details": {}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *mollie.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return mollie.New("test_key",
		mollie.WithBaseURL(srv.URL),
		mollie.WithHTTPClient(srv.Client()),
		mollie.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestGetPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/payments/tr_WDqYK6vllg", r.URL.Path)
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/hal+json")
		_, _ = io.WriteString(w, paidPayment)
	})

	p, err := c.GetPayment(context.Background(), "tr_WDqYK6vllg")
	require.NoError(t, err)

	assert.Equal(t, "paid", p.Status)
	assert.Equal(t, "cst_8wmqcHMN4U", p.CustomerID)
	assert.Equal(t, gateway.Metadata{TenantID: "T1", PlanID: "plan_01hx", SubscriptionID: "sub_01hx"}, p.Metadata)
	require.NotNil(t, p.PaidAt)

	m, err := p.Amount.Money()
	require.NoError(t, err)
	assert.Equal(t, int64(2900), m.Amount)
	assert.Equal(t, "eur", m.Currency)

	assert.True(t, c.IsPaymentSuccessful(p))
	assert.False(t, c.IsPaymentFailed(p))
	assert.Equal(t, "sub_cst_8wmqcHMN4U", p.GatewaySubscriptionID())
}

func TestGetPaymentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, remit.ErrGatewayPaymentNotFound},
		{"unauthorized", http.StatusUnauthorized, remit.ErrGatewayNotConfigured},
		{"server error", http.StatusBadGateway, remit.ErrGatewayUnavailable},
		{"rate limited", http.StatusTooManyRequests, remit.ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"status":0,"title":"Error","detail":"nope"}`)
			})

			_, err := c.GetPayment(context.Background(), "tr_missing")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestGetPaymentRequiresKey(t *testing.T) {
	_, err := mollie.New("").GetPayment(context.Background(), "tr_x")
	assert.ErrorIs(t, err, remit.ErrGatewayNotConfigured)
}

func TestNonObjectMetadataDecodesEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"tr_1","status":"open","amount":{"value":"1.00","currency":"EUR"},"metadata":"order 12"}`)
	})

	p, err := c.GetPayment(context.Background(), "tr_1")
	require.NoError(t, err)
	assert.False(t, p.Metadata.Complete())
}

func TestInternalStatus(t *testing.T) {
	c := mollie.New("k")
	tests := map[string]payment.Status{
		"open":       payment.StatusPending,
		"pending":    payment.StatusPending,
		"authorized": payment.StatusAuthorized,
		"paid":       payment.StatusPaid,
		"failed":     payment.StatusFailed,
		"canceled":   payment.StatusCancelled,
		"expired":    payment.StatusExpired,
		"mystery":    payment.StatusPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, c.InternalStatus(in), in)
	}
}

func TestPredicates(t *testing.T) {
	c := mollie.New("k")
	eur := gateway.Amount{Value: "29.00", Currency: "EUR"}

	tests := []struct {
		name    string
		p       *gateway.Payment
		success bool
		failed  bool
	}{
		{"paid", &gateway.Payment{Status: "paid", Amount: eur}, true, false},
		{"partially refunded", &gateway.Payment{Status: "paid", Amount: eur, AmountRefunded: &gateway.Amount{Value: "10.00", Currency: "EUR"}}, true, false},
		{"fully refunded", &gateway.Payment{Status: "paid", Amount: eur, AmountRefunded: &gateway.Amount{Value: "29.00", Currency: "EUR"}}, false, false},
		{"open", &gateway.Payment{Status: "open", Amount: eur}, false, false},
		{"authorized", &gateway.Payment{Status: "authorized", Amount: eur}, false, false},
		{"failed", &gateway.Payment{Status: "failed", Amount: eur}, false, true},
		{"canceled", &gateway.Payment{Status: "canceled", Amount: eur}, false, true},
		{"expired", &gateway.Payment{Status: "expired", Amount: eur}, false, true},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.success, c.IsPaymentSuccessful(tt.p))
			assert.Equal(t, tt.failed, c.IsPaymentFailed(tt.p))
		})
	}
}
