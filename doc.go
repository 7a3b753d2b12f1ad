// Package remit reconciles hosted-gateway payment webhooks with local
// subscription state for a multi-tenant SaaS.
//
// Remit is designed as a library. It provides:
//
//   - A subscription service: plans, trials, paid subscriptions, status
//     transitions, cancellation and payment records
//   - A webhook reconciliation engine (package reconcile) that fetches the
//     authoritative payment from the gateway, correlates it with the local
//     record, recovers orphaned payments and moves the subscription along
//   - An HTTP webhook endpoint (package webhook)
//   - A structured payment event trail (package paylog)
//   - A Mollie gateway client (package gateway/mollie)
//
// # Quick Start
//
//	st := memory.New() // or postgres.New(db), sqlite.New(db), mongo.New(db)
//	r := remit.New(st, remit.WithLogger(logger))
//	if err := r.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
//
//	engine := reconcile.New(mollie.New(apiKey), r)
//	http.Handle("/webhooks/mollie", webhook.New(engine))
//
// # Subscriptions
//
// A new tenant starts on a 14-day trial of the Starter plan:
//
//	sub, err := r.CreateTrialSubscription(ctx, tenantID, id.Nil)
//
// Checkout creates an unpaid subscription and a pending payment record
// keyed by the gateway payment id:
//
//	sub, err := r.CreateSubscription(ctx, tenantID, planID, customerID)
//	pay, err := r.CreatePaymentRecord(ctx, sub.ID, remit.EUR(2900), "tr_WDqYK6vllg")
//
// When the gateway calls the webhook, the engine marks the payment paid and
// the subscription active, or the subscription unpaid on failure.
//
// # Feature gating
//
//	status := r.SubscriptionStatus(ctx, tenantID)
//	if status.FeatureAvailable("online_booking") { ... }
//	if res := status.Check("staff", staffCount); !res.Allowed { ... }
//
// All monetary values use integer minor units (types.Money).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	plan_01h2xcejqtf2nbrexx3vqjhp41  // Plan ID
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
package remit
