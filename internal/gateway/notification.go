package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"server/internal/domain"
)

// Notification is the validated form of an inbound gateway callback.
// Unknown fields in the raw body are ignored; missing required fields
// are rejected here, before anything reaches the engine.
type Notification struct {
	OrderRef          string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`

	// Raw keeps the payload as delivered, for audit storage.
	Raw json.RawMessage `json:"-"`
}

// ParseNotification decodes and validates a raw webhook body.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("gateway: decode notification: %w", err)
	}
	if n.OrderRef == "" {
		return nil, fmt.Errorf("gateway: notification missing order_id")
	}
	if n.TransactionStatus == "" {
		return nil, fmt.Errorf("gateway: notification missing transaction_status")
	}
	if n.StatusCode == "" || n.GrossAmount == "" || n.SignatureKey == "" {
		return nil, fmt.Errorf("gateway: notification missing signature fields")
	}
	n.Raw = append(json.RawMessage(nil), raw...)
	return &n, nil
}

// VerifySignature checks the notification's authenticity: sha512 hex of
// order_id + status_code + gross_amount + server key must equal
// signature_key.
func (n *Notification) VerifySignature(serverKey string) bool {
	sum := sha512.Sum512([]byte(n.OrderRef + n.StatusCode + n.GrossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// MapStatus translates the gateway's status vocabulary into a target
// transaction status. Total over all inputs: anything unrecognized maps
// to PENDING, which is a no-op-safe default for a pending transaction.
func MapStatus(transactionStatus, fraudStatus string) domain.TransactionStatus {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "accept":
			return domain.StatusCompleted
		case "challenge":
			return domain.StatusProcessing
		}
		return domain.StatusPending
	case "settlement":
		return domain.StatusCompleted
	case "pending":
		return domain.StatusPending
	case "deny", "expire", "cancel":
		return domain.StatusFailed
	}
	return domain.StatusPending
}

// TargetStatus applies MapStatus to this notification.
func (n *Notification) TargetStatus() domain.TransactionStatus {
	return MapStatus(n.TransactionStatus, n.FraudStatus)
}

// Signature computes the signature_key value the gateway would send for
// the given fields. Used by tests and by outbound verification tooling.
func Signature(orderRef, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderRef + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
