package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"server/internal/domain"
	"server/internal/engine"
	"server/internal/gateway"
	"server/internal/infra"
	"server/internal/middleware"
)

// TransactionEngine is the slice of the engine the HTTP layer drives.
type TransactionEngine interface {
	Create(ctx context.Context, p engine.CreateParams) (*engine.CreateResult, error)
	CreateManual(ctx context.Context, p engine.ManualParams) (*domain.Transaction, error)
	HandleWebhook(ctx context.Context, n *gateway.Notification) (engine.Outcome, *domain.Transaction, error)
	ManualOverride(ctx context.Context, txnID string, target domain.TransactionStatus, actorID, locale string) (engine.Outcome, *domain.Transaction, error)
	Cancel(ctx context.Context, txnID, userID, locale string) (engine.Outcome, *domain.Transaction, error)
	Resume(ctx context.Context, txnID, userID string) (*gateway.Charge, *domain.Transaction, error)
}

type App struct {
	Engine            TransactionEngine
	Transactions      domain.TransactionStore
	Contributions     domain.ContributionReader
	Notifications     domain.NotificationStore
	Logger            infra.Logger
	MidtransServerKey string
	Now               func() time.Time
}

func (a *App) clock() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) isAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(domain.RoleAdmin)
}

// requestLocale is the locale negotiated for this request: X-Locale or
// Accept-Language header, then GeoIP country, then the server default.
func (a *App) requestLocale(r *http.Request) string {
	return middleware.LocaleFromContext(r.Context())
}

// domainError maps domain sentinel errors onto an HTTP error response.
// Returns false when err carries no known sentinel.
func (a *App) domainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrGateway):
		a.error(w, http.StatusBadGateway, "gateway_error", "payment gateway unavailable")
	default:
		return false
	}
	return true
}

type transactionJSON struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	ContributionID *string `json:"contribution_id"`
	Amount         int64   `json:"amount"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	OrderRef       string  `json:"order_ref"`
	PaymentMethod  string  `json:"payment_method,omitempty"`
	Description    string  `json:"description,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toTransactionJSON(t *domain.Transaction) transactionJSON {
	return transactionJSON{
		ID:             t.ID,
		UserID:         t.UserID,
		ContributionID: t.ContributionID,
		Amount:         t.Amount,
		Type:           string(t.Type),
		Status:         string(t.Status),
		OrderRef:       t.OrderRef,
		PaymentMethod:  t.PaymentMethod,
		Description:    t.Description,
		Notes:          t.Notes,
		CreatedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
