package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Publisher emits payment lifecycle events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(topic string, event any) error
}

// TransactionStatusChanged is published when a transaction reaches a
// terminal state.
type TransactionStatusChanged struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Provider      string          `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(topic string, event any) error { return nil }

var _ Publisher = NoopPublisher{}
