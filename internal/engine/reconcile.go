package engine

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/gateway"
)

// ReconcilePending re-queries the gateway for PENDING transactions older
// than the given age and feeds the result through the state machine. It
// covers charges whose creation timed out ambiguously and webhooks that
// never arrived. Returns the number of applied transitions.
func (e *Engine) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := e.now().Add(-olderThan)
	stale, err := e.store.ListPendingOlderThan(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range stale {
		txn := &stale[i]
		if txn.Type != domain.TransactionTypePayment {
			continue
		}
		status, err := e.gw.QueryStatus(ctx, txn.OrderRef)
		if err != nil {
			e.logger.Warn().Err(err).Str("transaction_id", txn.ID).
				Str("order_ref", txn.OrderRef).Msg("reconcile: status query failed")
			continue
		}
		target := gateway.MapStatus(status.TransactionStatus, status.FraudStatus)
		if target == txn.Status {
			continue
		}
		meta := TransitionMeta{PaymentMethod: status.PaymentType}
		outcome, _, err := e.attemptTransition(ctx, txn.ID, target, SourceReconcile, meta)
		if err != nil {
			e.logger.Error().Err(err).Str("transaction_id", txn.ID).
				Str("target", string(target)).Msg("reconcile: transition failed")
			continue
		}
		if outcome == OutcomeApplied {
			applied++
		}
	}
	return applied, nil
}

// ReconcileLedger re-derives collected totals for every contribution
// that has transactions and repairs any drift. Drift can only appear
// after a crash between a status write and its ledger delta; repairing
// it here keeps the collected-amount invariant self-healing.
func (e *Engine) ReconcileLedger(ctx context.Context) error {
	ids, err := e.contributions.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		total, corrected, err := e.ledger.Recompute(ctx, id)
		if err != nil {
			e.logger.Error().Err(err).Str("contribution_id", id).Msg("reconcile: ledger recompute failed")
			continue
		}
		if corrected {
			e.logger.Warn().Str("contribution_id", id).Int64("collected_amount", total).
				Msg("reconcile: repaired collected amount drift")
		}
	}
	return nil
}
