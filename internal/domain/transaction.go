package domain

import "time"

// TransactionType enumerates the kinds of financial transactions.
type TransactionType string

const (
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// ValidTransactionType reports whether t is a known transaction type.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypePayment, TransactionTypeRefund, TransactionTypeAdjustment:
		return true
	}
	return false
}

// TransactionStatus enumerates transaction lifecycle states.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
)

// Terminal reports whether s permits no further transitions.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ValidTransactionStatus reports whether s is a known lifecycle state.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the edge from -> to is allowed.
// PENDING may move to PROCESSING or any terminal state; PROCESSING may
// move to any terminal state. Terminal states have no outgoing edges.
func CanTransition(from, to TransactionStatus) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusPending:
		switch to {
		case StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
			return true
		}
	case StatusProcessing:
		switch to {
		case StatusCompleted, StatusFailed, StatusCancelled:
			return true
		}
	}
	return false
}

// Transaction is the authoritative record of a payment attempt. Its
// status is the single source of truth for ledger application; the
// Payment row is a derived read projection.
type Transaction struct {
	ID             string
	UserID         string
	ContributionID *string
	Amount         int64
	Type           TransactionType
	Status         TransactionStatus
	OrderRef       string
	PaymentMethod  string
	Description    string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LedgerDelta returns the signed amount a transition of this transaction
// into COMPLETED contributes to its contribution's collected total.
// Transactions without a contribution and ADJUSTMENT entries contribute
// nothing.
func (t *Transaction) LedgerDelta() int64 {
	if t.ContributionID == nil {
		return 0
	}
	switch t.Type {
	case TransactionTypePayment:
		return t.Amount
	case TransactionTypeRefund:
		return -t.Amount
	}
	return 0
}
