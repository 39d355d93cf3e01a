package domain

import (
	"context"
	"time"
)

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	UserID         string
	ContributionID string
	OrderRef       string
	Status         TransactionStatus
	Type           TransactionType
	StartDate      *time.Time
	EndDate        *time.Time
	Page           int
	Limit          int
}

// TransactionStore is the durable record of transactions and their
// payment projections.
type TransactionStore interface {
	// Create inserts the transaction and, when pay is non-nil, its
	// payment projection atomically: both rows or neither.
	Create(ctx context.Context, txn *Transaction, pay *Payment) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)
	// ListPendingOlderThan returns PENDING transactions created before
	// the cutoff, oldest first, for the reconciliation sweep.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error)
	// ApplyTransition persists target on the transaction and the mapped
	// status on its payment projection in one atomic unit. The update is
	// compare-and-set against txn.Status; ErrConflict is returned when
	// the row moved underneath the caller.
	ApplyTransition(ctx context.Context, txn *Transaction, target TransactionStatus, paymentMethod, notes string) error
}

// Ledger owns the collected-amount total per contribution.
type Ledger interface {
	// ApplyDelta atomically adds the signed amount to the contribution's
	// collected total. Concurrent calls for different transactions
	// accumulate; there is no read-modify-write window.
	ApplyDelta(ctx context.Context, contributionID string, delta int64) error
	// Recompute re-derives the collected total from completed
	// transactions and repairs the stored value if it drifted. It
	// returns the derived total and whether a repair was needed.
	Recompute(ctx context.Context, contributionID string) (int64, bool, error)
}

// NotificationSink records a user-visible message. Fire-and-forget from
// the engine's perspective.
type NotificationSink interface {
	Record(ctx context.Context, userID, title, message string) error
}

// ContributionReader is the read-only contribution lookup the engine
// needs at creation time.
type ContributionReader interface {
	GetByID(ctx context.Context, id string) (*Contribution, error)
	List(ctx context.Context) ([]Contribution, error)
	// ListIDs returns ids of contributions that have at least one
	// transaction, for the ledger reconciliation sweep.
	ListIDs(ctx context.Context) ([]string, error)
}

// UserReader resolves users for charge creation and notifications.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// NotificationStore extends the sink with the read side consumed by the
// notification center endpoints.
type NotificationStore interface {
	NotificationSink
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}
