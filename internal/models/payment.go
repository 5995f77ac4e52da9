package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment providers
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderCash   = "cash"
)

// Payment types
const (
	PaymentTypeDeposit = "deposit"
	PaymentTypeRent    = "rent"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment is one attempt; a transaction may accumulate several (e.g. a failed
// stripe attempt followed by cash).
type Payment struct {
	ID                 uuid.UUID `json:"id"`
	TransactionID      uuid.UUID `json:"transaction_id"`
	Provider           string    `json:"provider"`
	Type               string    `json:"type"`
	Amount             int64     `json:"amount"` // minor units
	Currency           string    `json:"currency"`
	Status             string    `json:"status"`
	ProviderIntentRef  *string   `json:"provider_intent_ref,omitempty"`
	ProviderSessionRef *string   `json:"provider_session_ref,omitempty"`
	ReceiptRef         *string   `json:"receipt_ref,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsActive reports whether the payment still counts against the
// one-deposit-in-flight rule.
func (p *Payment) IsActive() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusSucceeded
}
