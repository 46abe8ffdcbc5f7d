package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusSuccess    TransactionStatus = "success"
	StatusFailed     TransactionStatus = "failed"
)

// Terminal reports whether the status is a final outcome. A success record
// is never updated again; a failed record is only revisited by creating a
// new transaction.
func (s TransactionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Transaction is a single payment attempt against the mobile-money gateway.
// Records are never deleted; cancellations and failures are recorded as
// status transitions.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id,omitempty"`
	DoctorID       string            `json:"doctor_id"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Provider       string            `json:"provider"`
	PaymentAccount string            `json:"payment_account"`
	Status         TransactionStatus `json:"status"`

	// ExternalReference is the gateway-assigned identifier, set once when
	// the gateway accepts the request. Callbacks are joined on this value.
	ExternalReference string `json:"external_reference,omitempty"`

	Description   string    `json:"description,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
