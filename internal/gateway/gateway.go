package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalized status vocabulary returned by CheckStatus. Vendor-native
// strings ("completed", "cancelled", ...) are folded into these three.
const (
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusProcessing = "PROCESSING"
)

// InitiateResult is the normalized outcome of a payment initiation. Transport
// failures are reported through Success/Error, never as a raw error value.
type InitiateResult struct {
	Success    bool
	Simulated  bool
	ExternalID string
	Status     string
	Channel    string
	Error      string
}

// StatusResult is the normalized outcome of a status query. Status is one of
// StatusSuccess, StatusFailed or StatusProcessing; RawStatus keeps the
// vendor's native string for diagnostics.
type StatusResult struct {
	Success   bool
	Status    string
	RawStatus string
	Error     string
}

// Gateway abstracts a mobile-money payment gateway. Callers depend only on
// this capability set, never on a concrete vendor.
type Gateway interface {
	Name() string
	InitiatePayment(ctx context.Context, account string, amount decimal.Decimal, orderReference string) InitiateResult
	CheckStatus(ctx context.Context, reference string) StatusResult
}

// NormalizeStatus folds a vendor-native status string into the standard
// vocabulary. Matching is case-insensitive; anything unrecognized maps to
// PROCESSING rather than guessing a terminal outcome.
func NormalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "completed":
		return StatusSuccess
	case "failed", "cancelled":
		return StatusFailed
	default:
		return StatusProcessing
	}
}
