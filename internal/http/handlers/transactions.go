package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/engine"
)

// TransactionsList returns transactions matching the query filters.
// Residents only ever see their own rows; admins can filter by any user.
func (a *App) TransactionsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	q := r.URL.Query()
	filter := domain.TransactionFilter{
		UserID:         userID,
		ContributionID: q.Get("contribution_id"),
		OrderRef:       q.Get("order_ref"),
		Status:         domain.TransactionStatus(q.Get("status")),
		Type:           domain.TransactionType(q.Get("type")),
		Page:           queryInt(q.Get("page"), 1),
		Limit:          queryInt(q.Get("limit"), 20),
	}
	if a.isAdmin(r) {
		filter.UserID = q.Get("user_id")
	}
	if filter.Status != "" && !domain.ValidTransactionStatus(filter.Status) {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status filter")
		return
	}
	if filter.Type != "" && !domain.ValidTransactionType(filter.Type) {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown type filter")
		return
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "end_date must be YYYY-MM-DD")
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &end
	}

	items, total, err := a.Transactions.List(r.Context(), filter)
	if err != nil {
		a.Logger.Error().Err(err).Msg("transaction list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list transactions")
		return
	}

	out := make([]transactionJSON, 0, len(items))
	for i := range items {
		out = append(out, toTransactionJSON(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": out,
		"pagination": map[string]int{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

// TransactionsGet returns a single transaction. Residents may only read
// their own; anything else is reported as not found.
func (a *App) TransactionsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	txn, err := a.Transactions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load transaction")
		}
		return
	}
	if txn.UserID != userID && !a.isAdmin(r) {
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(txn)})
}

type manualTransactionRequest struct {
	UserID         string  `json:"user_id"`
	ContributionID *string `json:"contribution_id"`
	Amount         int64   `json:"amount"`
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	Notes          string  `json:"notes"`
}

// TransactionsCreateManual records an administrative transaction, such
// as a refund or a correction entry, without touching the gateway.
func (a *App) TransactionsCreateManual(w http.ResponseWriter, r *http.Request) {
	var req manualTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}

	txn, err := a.Engine.CreateManual(r.Context(), engine.ManualParams{
		UserID:         req.UserID,
		ContributionID: req.ContributionID,
		Amount:         req.Amount,
		Type:           domain.TransactionType(req.Type),
		Description:    strings.TrimSpace(req.Description),
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		if !a.domainError(w, err) {
			a.Logger.Error().Err(err).Msg("manual transaction create failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create transaction")
		}
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"transaction": toTransactionJSON(txn)})
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// TransactionsUpdateStatus is the admin override: it asserts COMPLETED
// or FAILED through the same guarded transition the webhook uses.
func (a *App) TransactionsUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	txnID := chi.URLParam(r, "id")
	outcome, txn, err := a.Engine.ManualOverride(r.Context(), txnID, domain.TransactionStatus(req.Status), a.currentUserID(r), a.requestLocale(r))
	if err != nil {
		if !a.domainError(w, err) {
			a.Logger.Error().Err(err).Str("transaction_id", txnID).Msg("status override failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to update status")
		}
		return
	}
	// Already-terminal overrides answer 409 but still carry the no-op
	// outcome and current row, so retries can tell nothing changed.
	code := http.StatusOK
	if outcome == engine.OutcomeNoOp {
		code = http.StatusConflict
	}
	a.json(w, code, map[string]any{
		"outcome":     outcome.String(),
		"transaction": toTransactionJSON(txn),
	})
}

// TransactionsCancel cancels the caller's own pending transaction.
func (a *App) TransactionsCancel(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	txnID := chi.URLParam(r, "id")
	outcome, txn, err := a.Engine.Cancel(r.Context(), txnID, userID, a.requestLocale(r))
	if err != nil {
		if !a.domainError(w, err) {
			a.Logger.Error().Err(err).Str("transaction_id", txnID).Msg("cancel failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to cancel transaction")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"outcome":     outcome.String(),
		"transaction": toTransactionJSON(txn),
	})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
