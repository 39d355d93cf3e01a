package handlers

import (
	"errors"
	"io"
	"net/http"

	"server/internal/domain"
	"server/internal/engine"
	"server/internal/gateway"
)

// MidtransWebhook ingests gateway payment notifications. The signature
// is verified before anything reaches the engine; redelivered or stale
// notifications are acknowledged with 200 so the gateway stops retrying.
func (a *App) MidtransWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	n, err := gateway.ParseNotification(body)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "malformed notification")
		return
	}
	if !n.VerifySignature(a.MidtransServerKey) {
		a.Logger.Warn().Str("order_ref", n.OrderRef).Msg("webhook signature mismatch")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
		return
	}

	outcome, txn, err := a.Engine.HandleWebhook(r.Context(), n)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "unknown order reference")
			return
		case errors.Is(err, domain.ErrInvalidTransition):
			// A disallowed edge from a concurrent race. The row is
			// consistent, so acknowledge and let the gateway move on.
			a.Logger.Warn().Err(err).Str("order_ref", n.OrderRef).Msg("webhook transition rejected")
			a.json(w, http.StatusOK, map[string]string{"status": engine.OutcomeRejected.String()})
			return
		default:
			a.Logger.Error().Err(err).Str("order_ref", n.OrderRef).Msg("webhook handling failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to process notification")
			return
		}
	}

	a.Logger.Info().Str("order_ref", n.OrderRef).Str("outcome", outcome.String()).
		Str("status", string(txn.Status)).Msg("webhook processed")
	a.json(w, http.StatusOK, map[string]string{
		"status":             outcome.String(),
		"transaction_status": string(txn.Status),
	})
}
