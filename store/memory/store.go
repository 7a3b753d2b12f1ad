// Package memory provides an in-memory Store for tests and single-process
// deployments. Rows are copied on the way in and out, so callers never share
// mutable state with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/remit"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/store"
	"github.com/xraph/remit/subscription"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Plan storage
	plans map[string]*plan.Plan

	// Subscription storage
	subscriptions map[string]*subscription.Subscription

	// Payment storage
	payments map[string]*payment.Payment

	closed bool
}

func New() *Store {
	return &Store{
		plans:         make(map[string]*plan.Plan),
		subscriptions: make(map[string]*subscription.Subscription),
		payments:      make(map[string]*payment.Payment),
	}
}

// ──────────────────────────────────────────────────
// Plan Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remit.ErrStoreClosed
	}
	if _, exists := s.plans[p.ID.String()]; exists {
		return remit.ErrAlreadyExists
	}
	s.plans[p.ID.String()] = p.Clone()
	return nil
}

func (s *Store) GetPlan(_ context.Context, planID id.PlanID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	if p, ok := s.plans[planID.String()]; ok {
		return p.Clone(), nil
	}
	return nil, remit.ErrPlanNotFound
}

func (s *Store) GetPlanByName(_ context.Context, name string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	for _, p := range s.plans {
		if p.Name == name && p.Status == plan.StatusActive {
			return p.Clone(), nil
		}
	}
	return nil, remit.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	result := make([]*plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if opts.Status == "" || p.Status == opts.Status {
			result = append(result, p.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *plan.Plan) int {
		if c := cmp.Compare(a.Price.Amount, b.Price.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remit.ErrStoreClosed
	}

	if _, exists := s.plans[p.ID.String()]; !exists {
		return remit.ErrPlanNotFound
	}
	s.plans[p.ID.String()] = p.Clone()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remit.ErrStoreClosed
	}
	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return remit.ErrAlreadyExists
	}
	s.subscriptions[sub.ID.String()] = sub.Clone()
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return sub.Clone(), nil
	}
	return nil, remit.ErrSubscriptionNotFound
}

func (s *Store) GetLatestSubscription(_ context.Context, tenantID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	var latest *subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		if latest == nil || newerSubscription(sub, latest) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, remit.ErrSubscriptionNotFound
	}
	return latest.Clone(), nil
}

func (s *Store) ListSubscriptions(_ context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		if opts.Status == "" || sub.Status == opts.Status {
			result = append(result, sub.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *subscription.Subscription) int {
		if newerSubscription(a, b) {
			return -1
		}
		if newerSubscription(b, a) {
			return 1
		}
		return 0
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remit.ErrStoreClosed
	}
	if _, exists := s.subscriptions[sub.ID.String()]; !exists {
		return remit.ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID.String()] = sub.Clone()
	return nil
}

func (s *Store) HasActiveSubscription(_ context.Context, tenantID string, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, remit.ErrStoreClosed
	}

	var latest *subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		if latest == nil || newerSubscription(sub, latest) {
			latest = sub
		}
	}
	if latest == nil {
		return false, nil
	}
	if latest.Status != subscription.StatusActive && latest.Status != subscription.StatusTrial {
		return false, nil
	}
	return latest.CurrentPeriodEnd.After(at), nil
}

// ──────────────────────────────────────────────────
// Payment Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remit.ErrStoreClosed
	}
	if _, exists := s.payments[p.ID.String()]; exists {
		return remit.ErrAlreadyExists
	}
	s.payments[p.ID.String()] = p.Clone()
	return nil
}

func (s *Store) GetPayment(_ context.Context, payID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	if p, ok := s.payments[payID.String()]; ok {
		return p.Clone(), nil
	}
	return nil, remit.ErrPaymentNotFound
}

func (s *Store) GetPaymentByGatewayID(_ context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	var latest *payment.Payment
	for _, p := range s.payments {
		if p.GatewayPaymentID != gatewayPaymentID {
			continue
		}
		if latest == nil || newerPayment(p, latest) {
			latest = p
		}
	}
	if latest == nil {
		return nil, remit.ErrPaymentNotFound
	}
	return latest.Clone(), nil
}

func (s *Store) ListPayments(_ context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.SubscriptionID.String() != subID.String() {
			continue
		}
		if opts.Status == "" || p.Status == opts.Status {
			result = append(result, p.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *payment.Payment) int {
		if newerPayment(a, b) {
			return -1
		}
		if newerPayment(b, a) {
			return 1
		}
		return 0
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remit.ErrStoreClosed
	}
	if _, exists := s.payments[p.ID.String()]; !exists {
		return remit.ErrPaymentNotFound
	}
	s.payments[p.ID.String()] = p.Clone()
	return nil
}

func (s *Store) ListStalePending(_ context.Context, before time.Time, limit int) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, remit.ErrStoreClosed
	}

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.Status == payment.StatusPending && p.CreatedAt.Before(before) {
			result = append(result, p.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *payment.Payment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return paginate(result, 0, limit), nil
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return remit.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// newerSubscription orders by creation time, breaking ties on the
// K-sortable ID so rows created in the same instant still order.
func newerSubscription(a, b *subscription.Subscription) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func newerPayment(a, b *payment.Payment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
