package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"server/internal/engine"
)

type paymentCreateRequest struct {
	ContributionID *string `json:"contribution_id"`
	Amount         int64   `json:"amount"`
	Description    string  `json:"description"`
}

// PaymentsCreate opens a gateway charge for the authenticated resident
// and records the pending transaction behind it.
func (a *App) PaymentsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req paymentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Amount <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}
	if req.ContributionID != nil && strings.TrimSpace(*req.ContributionID) == "" {
		req.ContributionID = nil
	}

	res, err := a.Engine.Create(r.Context(), engine.CreateParams{
		UserID:         userID,
		ContributionID: req.ContributionID,
		Amount:         req.Amount,
		Description:    strings.TrimSpace(req.Description),
	})
	if err != nil {
		if !a.domainError(w, err) {
			a.Logger.Error().Err(err).Msg("payment create failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create payment")
		}
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"transaction":  toTransactionJSON(res.Transaction),
		"charge_token": res.ChargeToken,
		"redirect_url": res.RedirectURL,
	})
}

type paymentResumeRequest struct {
	TransactionID string `json:"transaction_id"`
}

// PaymentsResume re-issues a charge token for a still-pending
// transaction so the payer can finish checkout later.
func (a *App) PaymentsResume(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req paymentResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TransactionID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "transaction_id required")
		return
	}

	charge, txn, err := a.Engine.Resume(r.Context(), req.TransactionID, userID)
	if err != nil {
		if !a.domainError(w, err) {
			a.Logger.Error().Err(err).Str("transaction_id", req.TransactionID).Msg("payment resume failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to resume payment")
		}
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"transaction":  toTransactionJSON(txn),
		"charge_token": charge.Token,
		"redirect_url": charge.RedirectURL,
	})
}
