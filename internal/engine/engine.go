package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/gateway"
	"server/internal/infra"
)

// Source identifies what triggered a transition attempt.
type Source string

const (
	SourceWebhook   Source = "webhook"
	SourceManual    Source = "manual"
	SourceCancel    Source = "cancel"
	SourceReconcile Source = "reconcile"
)

// Outcome is the result of a transition attempt. NoOp covers redelivery
// of a signal the transaction already absorbed; Rejected signals an edge
// outside the allowed table and is surfaced together with
// domain.ErrInvalidTransition.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoOp
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "noop"
	case OutcomeRejected:
		return "rejected"
	}
	return "unknown"
}

// TransitionMeta carries fields recorded alongside an applied
// transition. Empty values leave the stored columns untouched. Locale
// is never persisted; it seeds the notification copy when the user
// profile has no stored locale.
type TransitionMeta struct {
	PaymentMethod string
	Notes         string
	Locale        string
}

// Options wires the engine's collaborators. Every dependency is
// injected; the engine holds no ambient state.
type Options struct {
	Store         domain.TransactionStore
	Ledger        domain.Ledger
	Notifications domain.NotificationSink
	Gateway       gateway.Client
	Contributions domain.ContributionReader
	Users         domain.UserReader
	Logger        infra.Logger
	DefaultLocale string
	Now           func() time.Time
}

// Engine drives the transaction state machine: it creates payment
// intents, maps external signals to guarded transitions, and applies
// ledger and notification effects exactly once per terminal transition.
type Engine struct {
	store         domain.TransactionStore
	ledger        domain.Ledger
	sink          domain.NotificationSink
	gw            gateway.Client
	contributions domain.ContributionReader
	users         domain.UserReader
	logger        infra.Logger
	defaultLocale string
	now           func() time.Time
	locks         *keyedMutex
}

// New constructs an Engine from options.
func New(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	locale := opts.DefaultLocale
	if locale == "" {
		locale = "id"
	}
	return &Engine{
		store:         opts.Store,
		ledger:        opts.Ledger,
		sink:          opts.Notifications,
		gw:            opts.Gateway,
		contributions: opts.Contributions,
		users:         opts.Users,
		logger:        opts.Logger,
		defaultLocale: locale,
		now:           now,
		locks:         newKeyedMutex(),
	}
}

// CreateParams describes a payment intent to open.
type CreateParams struct {
	UserID         string
	ContributionID *string
	Amount         int64
	Description    string
}

// CreateResult is returned from Create with the gateway token and
// redirect URL passed through unmodified.
type CreateResult struct {
	Transaction *domain.Transaction
	ChargeToken string
	RedirectURL string
}

// Create opens a gateway charge and records the PENDING transaction with
// its payment projection. The gateway is called before anything is
// persisted: a gateway failure leaves no rows behind, and the caller
// retries the whole operation.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	user, err := e.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", p.UserID, err)
	}

	description := p.Description
	if p.ContributionID != nil {
		contribution, err := e.contributions.GetByID(ctx, *p.ContributionID)
		if err != nil {
			return nil, fmt.Errorf("load contribution %s: %w", *p.ContributionID, err)
		}
		if !contribution.AcceptsPayments(e.now()) {
			return nil, fmt.Errorf("%w: contribution %s is not accepting payments", domain.ErrValidation, contribution.ID)
		}
		if description == "" {
			description = "Pembayaran untuk " + contribution.Title
		}
	}

	orderRef := "ORDER-" + uuid.NewString()
	charge, err := e.gw.CreateCharge(ctx, gateway.ChargeRequest{
		OrderRef:      orderRef,
		Amount:        p.Amount,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		Description:   description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	created := e.now()
	txn := &domain.Transaction{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		ContributionID: p.ContributionID,
		Amount:         p.Amount,
		Type:           domain.TransactionTypePayment,
		Status:         domain.StatusPending,
		OrderRef:       orderRef,
		Description:    description,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	pay := &domain.Payment{
		ID:             uuid.NewString(),
		TransactionID:  txn.ID,
		UserID:         p.UserID,
		ContributionID: p.ContributionID,
		Amount:         p.Amount,
		Status:         domain.PaymentPending,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	if err := e.store.Create(ctx, txn, pay); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	e.logger.Info().Str("transaction_id", txn.ID).Str("order_ref", orderRef).
		Int64("amount", p.Amount).Msg("payment intent created")

	return &CreateResult{Transaction: txn, ChargeToken: charge.Token, RedirectURL: charge.RedirectURL}, nil
}

// ManualParams describes an admin-created transaction. REFUND and
// ADJUSTMENT entries never touch the gateway; their lifecycle is driven
// by manual overrides only.
type ManualParams struct {
	UserID         string
	ContributionID *string
	Amount         int64
	Type           domain.TransactionType
	Description    string
	Notes          string
}

// CreateManual records an administrative transaction without opening a
// gateway charge. PAYMENT-type entries still get a payment projection.
func (e *Engine) CreateManual(ctx context.Context, p ManualParams) (*domain.Transaction, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if !domain.ValidTransactionType(p.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, p.Type)
	}
	if _, err := e.users.GetByID(ctx, p.UserID); err != nil {
		return nil, fmt.Errorf("load user %s: %w", p.UserID, err)
	}
	if p.ContributionID != nil {
		if _, err := e.contributions.GetByID(ctx, *p.ContributionID); err != nil {
			return nil, fmt.Errorf("load contribution %s: %w", *p.ContributionID, err)
		}
	}

	created := e.now()
	txn := &domain.Transaction{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		ContributionID: p.ContributionID,
		Amount:         p.Amount,
		Type:           p.Type,
		Status:         domain.StatusPending,
		OrderRef:       "ORDER-" + uuid.NewString(),
		Description:    p.Description,
		Notes:          p.Notes,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	var pay *domain.Payment
	if p.Type == domain.TransactionTypePayment {
		pay = &domain.Payment{
			ID:             uuid.NewString(),
			TransactionID:  txn.ID,
			UserID:         p.UserID,
			ContributionID: p.ContributionID,
			Amount:         p.Amount,
			Status:         domain.PaymentPending,
			CreatedAt:      created,
			UpdatedAt:      created,
		}
	}
	if err := e.store.Create(ctx, txn, pay); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}
	return txn, nil
}

// AttemptTransition drives the state machine for one transaction under
// its exclusive section. Already-terminal transactions absorb the signal
// as a NoOp; disallowed edges are Rejected with ErrInvalidTransition.
func (e *Engine) AttemptTransition(ctx context.Context, txnID string, target domain.TransactionStatus, source Source) (Outcome, *domain.Transaction, error) {
	return e.attemptTransition(ctx, txnID, target, source, TransitionMeta{})
}

func (e *Engine) attemptTransition(ctx context.Context, txnID string, target domain.TransactionStatus, source Source, meta TransitionMeta) (Outcome, *domain.Transaction, error) {
	unlock := e.locks.Lock(txnID)
	defer unlock()

	txn, err := e.store.GetByID(ctx, txnID)
	if err != nil {
		return OutcomeRejected, nil, fmt.Errorf("load transaction %s: %w", txnID, err)
	}
	return e.transitionLocked(ctx, txn, target, source, meta)
}

// transitionLocked assumes the caller holds the per-id lock.
func (e *Engine) transitionLocked(ctx context.Context, txn *domain.Transaction, target domain.TransactionStatus, source Source, meta TransitionMeta) (Outcome, *domain.Transaction, error) {
	if !domain.ValidTransactionStatus(target) {
		return OutcomeRejected, txn, fmt.Errorf("%w: unknown target status %q", domain.ErrValidation, target)
	}
	if txn.Status.Terminal() {
		e.logger.Debug().Str("transaction_id", txn.ID).Str("status", string(txn.Status)).
			Str("target", string(target)).Str("source", string(source)).
			Msg("transition ignored: transaction already terminal")
		return OutcomeNoOp, txn, nil
	}
	if txn.Status == target {
		return OutcomeNoOp, txn, nil
	}
	if !domain.CanTransition(txn.Status, target) {
		return OutcomeRejected, txn, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, txn.Status, target)
	}

	previous := txn.Status
	if err := e.store.ApplyTransition(ctx, txn, target, meta.PaymentMethod, meta.Notes); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Another instance won the row. Re-read: if it reached a
			// terminal state the signal is absorbed, otherwise surface.
			current, readErr := e.store.GetByID(ctx, txn.ID)
			if readErr == nil && current.Status.Terminal() {
				return OutcomeNoOp, current, nil
			}
		}
		return OutcomeRejected, txn, fmt.Errorf("persist transition %s -> %s: %w", previous, target, err)
	}
	txn.Status = target
	if meta.PaymentMethod != "" {
		txn.PaymentMethod = meta.PaymentMethod
	}
	if meta.Notes != "" {
		txn.Notes = meta.Notes
	}
	txn.UpdatedAt = e.now()

	if target == domain.StatusCompleted {
		if delta := txn.LedgerDelta(); delta != 0 {
			if err := e.ledger.ApplyDelta(ctx, *txn.ContributionID, delta); err != nil {
				// The status row is durable; the ledger sweep re-derives
				// collected totals, so log and keep going.
				e.logger.Error().Err(err).Str("transaction_id", txn.ID).
					Str("contribution_id", *txn.ContributionID).Int64("delta", delta).
					Msg("ledger delta failed, pending reconciliation")
			}
		}
	}

	e.notify(ctx, txn, target, meta.Locale)

	e.logger.Info().Str("transaction_id", txn.ID).Str("from", string(previous)).
		Str("to", string(target)).Str("source", string(source)).Msg("transition applied")
	return OutcomeApplied, txn, nil
}

// notify records the localized copy for an applied transition. The
// stored user locale wins; requestLocale is the one negotiated for the
// triggering request (Accept-Language, country fallback) and covers
// users who never picked a language.
func (e *Engine) notify(ctx context.Context, txn *domain.Transaction, target domain.TransactionStatus, requestLocale string) {
	locale := e.defaultLocale
	if requestLocale != "" {
		locale = requestLocale
	}
	if user, err := e.users.GetByID(ctx, txn.UserID); err == nil && user.Locale != "" {
		locale = user.Locale
	}
	title, body := notificationCopy(locale, target, txn.Amount)
	if err := e.sink.Record(ctx, txn.UserID, title, body); err != nil {
		e.logger.Error().Err(err).Str("transaction_id", txn.ID).Msg("notification record failed")
	}
}

// HandleWebhook resolves the gateway notification to a transaction by
// order reference and feeds the mapped status through the guarded
// transition. Redelivery of the same notification is a NoOp.
func (e *Engine) HandleWebhook(ctx context.Context, n *gateway.Notification) (Outcome, *domain.Transaction, error) {
	txn, err := e.store.GetByOrderRef(ctx, n.OrderRef)
	if err != nil {
		return OutcomeRejected, nil, fmt.Errorf("lookup order %s: %w", n.OrderRef, err)
	}

	target := n.TargetStatus()
	meta := TransitionMeta{}
	if target != domain.StatusPending {
		meta.PaymentMethod = n.PaymentType
		if meta.PaymentMethod == "" {
			meta.PaymentMethod = "midtrans"
		}
		if n.TransactionID != "" {
			meta.Notes = "Paid via Midtrans. Transaction ID: " + n.TransactionID
		}
	}
	return e.attemptTransition(ctx, txn.ID, target, SourceWebhook, meta)
}

// ManualOverride lets an administrator assert one of the two terminal
// statuses that do not require gateway confirmation.
func (e *Engine) ManualOverride(ctx context.Context, txnID string, target domain.TransactionStatus, actorID, locale string) (Outcome, *domain.Transaction, error) {
	if target != domain.StatusCompleted && target != domain.StatusFailed {
		return OutcomeRejected, nil, fmt.Errorf("%w: manual override only permits COMPLETED or FAILED", domain.ErrValidation)
	}
	meta := TransitionMeta{Notes: "Status set manually by admin " + actorID, Locale: locale}
	return e.attemptTransition(ctx, txnID, target, SourceManual, meta)
}

// Cancel is the user-facing cancellation: an override to CANCELLED run
// through the same guard, so a late webhook cannot resurrect the
// transaction or double-apply ledger effects.
func (e *Engine) Cancel(ctx context.Context, txnID, userID, locale string) (Outcome, *domain.Transaction, error) {
	unlock := e.locks.Lock(txnID)
	defer unlock()

	txn, err := e.store.GetByID(ctx, txnID)
	if err != nil {
		return OutcomeRejected, nil, fmt.Errorf("load transaction %s: %w", txnID, err)
	}
	if txn.UserID != userID {
		return OutcomeRejected, nil, fmt.Errorf("transaction %s: %w", txnID, domain.ErrNotFound)
	}
	return e.transitionLocked(ctx, txn, domain.StatusCancelled, SourceCancel, TransitionMeta{Locale: locale})
}

// Resume re-opens a gateway charge for a PENDING transaction using the
// same order reference and amount. No new rows, no status change. It
// holds the transaction's exclusive section so a concurrent webhook
// cannot complete the row while a fresh token is being issued for it.
func (e *Engine) Resume(ctx context.Context, txnID, userID string) (*gateway.Charge, *domain.Transaction, error) {
	unlock := e.locks.Lock(txnID)
	defer unlock()

	txn, err := e.store.GetByID(ctx, txnID)
	if err != nil {
		return nil, nil, fmt.Errorf("load transaction %s: %w", txnID, err)
	}
	if txn.UserID != userID {
		return nil, nil, fmt.Errorf("transaction %s: %w", txnID, domain.ErrNotFound)
	}
	if txn.Status != domain.StatusPending {
		return nil, nil, fmt.Errorf("transaction %s is %s: %w", txnID, txn.Status, domain.ErrConflict)
	}
	if txn.Type != domain.TransactionTypePayment {
		return nil, nil, fmt.Errorf("%w: only payments can be resumed", domain.ErrValidation)
	}

	user, err := e.users.GetByID(ctx, txn.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user %s: %w", txn.UserID, err)
	}
	charge, err := e.gw.CreateCharge(ctx, gateway.ChargeRequest{
		OrderRef:      txn.OrderRef,
		Amount:        txn.Amount,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		Description:   txn.Description,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	return charge, txn, nil
}
