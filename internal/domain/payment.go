package domain

import "time"

// PaymentStatus enumerates states of the payment read projection.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentStatusFor maps a transaction status onto the narrower payment
// projection: COMPLETED mirrors COMPLETED, both terminal failure states
// collapse to FAILED, everything in flight stays PENDING.
func PaymentStatusFor(s TransactionStatus) PaymentStatus {
	switch s {
	case StatusCompleted:
		return PaymentCompleted
	case StatusFailed, StatusCancelled:
		return PaymentFailed
	}
	return PaymentPending
}

// Payment is a denormalized projection of a PAYMENT-type transaction,
// kept for per-user payment history queries. It is never independently
// authoritative; the engine keeps it in sync with Transaction.Status.
type Payment struct {
	ID             string
	TransactionID  string
	UserID         string
	ContributionID *string
	Amount         int64
	Status         PaymentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
