// Package gatewaytest provides an in-memory gateway.Client for tests. Status
// mapping and the success and failure predicates follow the Mollie client.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/gateway/mollie"
	"github.com/xraph/remit/payment"
)

var _ gateway.Client = (*Fake)(nil)

// Fake serves payments registered with Set.
type Fake struct {
	mu       sync.Mutex
	payments map[string]gateway.Payment
	failures map[string][]error
	calls    map[string]int
	mapper   *mollie.Client
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		payments: make(map[string]gateway.Payment),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		mapper:   mollie.New("test"),
	}
}

// Set registers or replaces a payment.
func (f *Fake) Set(p gateway.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
}

// SetStatus changes the status of a registered payment.
func (f *Fake) SetStatus(gatewayPaymentID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.payments[gatewayPaymentID]
	p.Status = status
	f.payments[gatewayPaymentID] = p
}

// FailNext makes the next n fetches of the payment return err.
func (f *Fake) FailNext(gatewayPaymentID string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.failures[gatewayPaymentID] = append(f.failures[gatewayPaymentID], err)
	}
}

// Calls returns how many times the payment was fetched.
func (f *Fake) Calls(gatewayPaymentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[gatewayPaymentID]
}

func (f *Fake) GetPayment(_ context.Context, gatewayPaymentID string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[gatewayPaymentID]++
	if queued := f.failures[gatewayPaymentID]; len(queued) > 0 {
		f.failures[gatewayPaymentID] = queued[1:]
		return nil, queued[0]
	}

	p, ok := f.payments[gatewayPaymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remit.ErrGatewayPaymentNotFound, gatewayPaymentID)
	}
	return &p, nil
}

func (f *Fake) InternalStatus(status string) payment.Status {
	return f.mapper.InternalStatus(status)
}

func (f *Fake) IsPaymentSuccessful(p *gateway.Payment) bool {
	return f.mapper.IsPaymentSuccessful(p)
}

func (f *Fake) IsPaymentFailed(p *gateway.Payment) bool {
	return f.mapper.IsPaymentFailed(p)
}
