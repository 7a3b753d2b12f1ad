package reconcile

import (
	"context"
	"time"

	"github.com/xraph/remit/paylog"
)

// Start launches the stale pending payment sweep when SweepInterval is
// positive. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	if e.cfg.SweepInterval <= 0 {
		return
	}

	e.wg.Add(1)
	go e.sweepWorker(ctx)

	e.logger.Info("payment sweep started",
		"interval", e.cfg.SweepInterval,
		"stale_after", e.cfg.SweepStaleAfter,
		"batch_size", e.cfg.SweepBatchSize,
	)
}

// Stop halts the sweep worker and waits for an in-flight sweep to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
}

func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep force-reconciles pending payments whose webhook never arrived and
// returns how many were reconciled successfully.
func (e *Engine) Sweep(ctx context.Context) int {
	start := e.now()
	cutoff := start.Add(-e.cfg.SweepStaleAfter)

	stale, err := e.payments.ListStalePending(ctx, cutoff, e.cfg.SweepBatchSize)
	if err != nil {
		e.logger.Error("payment sweep failed to list pending payments", "error", err)
		return 0
	}

	reconciled := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			break
		}

		e.paylog.Warn(paylog.WebhookMissing, paylog.Ref{
			PaymentID:        p.ID,
			GatewayPaymentID: p.GatewayPaymentID,
			SubscriptionID:   p.SubscriptionID,
			TenantID:         p.TenantID,
		}, "no webhook received for pending payment", paylog.Details{
			LocalStatus: string(p.Status),
			Duration:    start.Sub(p.CreatedAt),
		})

		if e.ForceReconcilePayment(ctx, p.GatewayPaymentID) {
			reconciled++
		}
	}

	if len(stale) > 0 {
		e.logger.Info("payment sweep finished",
			"candidates", len(stale),
			"reconciled", reconciled,
			"elapsed_ms", e.now().Sub(start).Milliseconds(),
		)
	}
	return reconciled
}
