package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/events"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/gateway"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

// debounceWindow is how long a pending/processing transaction for the same
// payer/payee pair blocks a new initiation. USSD prompts take tens of
// seconds and users double-submit; duplicates inside this window are folded
// into the original attempt.
const debounceWindow = 2 * time.Minute

// EventTopic is the Kafka topic terminal transitions are published to.
const EventTopic = "payment.transactions"

var (
	minAmount = decimal.NewFromInt(50)
	maxAmount = decimal.NewFromInt(5_000_000)
)

// PaymentService owns the transaction lifecycle: initiation with its
// debounce guard, and the reconciliation of status signals from the gateway
// callback, the status poll and explicit cancellation. All three entry
// points share one transition rule set; a transaction that reached success
// is never downgraded, whatever arrives later.
type PaymentService struct {
	store   storage.TransactionStore
	gateway gateway.Gateway
	events  events.Publisher
}

func NewPaymentService(store storage.TransactionStore, gw gateway.Gateway, pub events.Publisher) *PaymentService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &PaymentService{store: store, gateway: gw, events: pub}
}

type InitiateRequest struct {
	UserID         string
	DoctorID       string
	Amount         decimal.Decimal
	Provider       string
	PaymentAccount string
}

type InitiateResponse struct {
	TransactionID  string
	OrderReference string
	GatewayStatus  string
	PaymentChannel string
	Simulated      bool
}

// GatewayError reports a gateway-side initiation failure. The transaction
// record exists and is marked failed; the id is carried so the caller can
// correlate.
type GatewayError struct {
	TransactionID string
	Message       string
}

func (e *GatewayError) Error() string { return e.Message }

func (r InitiateRequest) validate() error {
	if strings.TrimSpace(r.DoctorID) == "" {
		return fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Provider) == "" {
		return fmt.Errorf("%w: provider is required", ErrValidation)
	}
	if strings.TrimSpace(r.PaymentAccount) == "" {
		return fmt.Errorf("%w: payment_account is required", ErrValidation)
	}
	if r.Amount.LessThan(minAmount) || r.Amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount must be between %s and %s", ErrValidation, minAmount, maxAmount)
	}
	return nil
}

// Initiate runs the debounce guard, creates a pending record, contacts the
// gateway and applies the initiation outcome.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.FindActive(ctx, req.UserID, req.DoctorID, time.Now().Add(-debounceWindow))
	if err == nil {
		log.Printf("Duplicate payment initiation blocked: user_id=%s transaction_id=%s", req.UserID, existing.ID)
		return nil, &DuplicateError{TransactionID: existing.ID}
	}
	if err != storage.ErrNotFound {
		return nil, fmt.Errorf("failed to check active transactions: %v", err)
	}

	tx := &models.Transaction{
		UserID:         req.UserID,
		DoctorID:       req.DoctorID,
		Amount:         req.Amount,
		Currency:       "TZS",
		Provider:       req.Provider,
		PaymentAccount: req.PaymentAccount,
		Status:         models.StatusPending,
		Description:    "Consultation Fee Payment",
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %v", err)
	}

	orderReference := fmt.Sprintf("HASET%sT%d", tx.ID, time.Now().Unix())

	result := s.gateway.InitiatePayment(ctx, req.PaymentAccount, req.Amount, orderReference)
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "Payment initiation failed"
		}
		if _, err := s.store.UpdateStatus(ctx, tx.ID, models.StatusFailed, reason); err != nil {
			log.Printf("Failed to mark transaction %s failed: %v", tx.ID, err)
		}
		log.Printf("Payment initiation failed: transaction_id=%s error=%s", tx.ID, reason)
		s.publishTerminal(tx, models.StatusFailed)
		return nil, &GatewayError{TransactionID: tx.ID, Message: reason}
	}

	externalRef := result.ExternalID
	if externalRef == "" {
		externalRef = orderReference
	}
	if err := s.store.SetExternalReference(ctx, tx.ID, externalRef); err != nil {
		log.Printf("Failed to record external reference for transaction %s: %v", tx.ID, err)
	}
	if _, err := s.store.UpdateStatus(ctx, tx.ID, models.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %v", err)
	}

	channel := result.Channel
	if channel == "" {
		channel = req.Provider
	}
	status := result.Status
	if status == "" {
		status = gateway.StatusProcessing
	}

	log.Printf("Payment initiated successfully: transaction_id=%s external_reference=%s order_reference=%s", tx.ID, externalRef, orderReference)
	return &InitiateResponse{
		TransactionID:  tx.ID,
		OrderReference: orderReference,
		GatewayStatus:  status,
		PaymentChannel: channel,
		Simulated:      result.Simulated,
	}, nil
}

// HandleCallback applies a push status update keyed by the gateway's
// external reference. Unknown references are acknowledged without effect:
// the gateway retries delivery and may send spurious data, neither of which
// is an error here.
func (s *PaymentService) HandleCallback(ctx context.Context, externalRef, rawStatus string) error {
	if externalRef == "" {
		return nil
	}

	tx, err := s.store.FindByExternalReference(ctx, externalRef)
	if err == storage.ErrNotFound {
		log.Printf("Callback for unknown external reference %s, ignoring", externalRef)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up transaction for callback: %v", err)
	}

	var newStatus models.TransactionStatus
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "success", "completed":
		newStatus = models.StatusSuccess
	case "failed", "cancelled":
		newStatus = models.StatusFailed
	default:
		// Unrecognized statuses are treated as still-in-progress; a known
		// state is never regressed on their account.
		log.Printf("Callback status %q for transaction %s, no action taken", rawStatus, tx.ID)
		return nil
	}

	if tx.Status == models.StatusSuccess {
		log.Printf("Transaction %s already succeeded, callback ignored", tx.ID)
		return nil
	}

	applied, err := s.store.UpdateStatus(ctx, tx.ID, newStatus, "")
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %v", err)
	}
	if applied {
		log.Printf("Transaction status updated via callback: transaction_id=%s new_status=%s", tx.ID, newStatus)
		s.publishTerminal(tx, newStatus)
	}
	return nil
}

type StatusResponse struct {
	Transaction *models.Transaction
	// GatewayStatus is the gateway's normalized status when a live query was
	// made, kept for diagnostics.
	GatewayStatus string
	// GatewayError is set when the live query failed; Transaction then
	// carries the last known local state.
	GatewayError string
}

// CheckStatus returns the transaction's current state. Terminal transactions
// are served from the store without contacting the gateway; otherwise the
// gateway is queried and the mapped result persisted.
func (s *PaymentService) CheckStatus(ctx context.Context, id string) (*StatusResponse, error) {
	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status.Terminal() {
		return &StatusResponse{Transaction: tx}, nil
	}

	result := s.gateway.CheckStatus(ctx, tx.ExternalReference)
	if !result.Success {
		log.Printf("Status check error for transaction %s: %s", tx.ID, result.Error)
		return &StatusResponse{Transaction: tx, GatewayError: result.Error}, nil
	}

	var newStatus models.TransactionStatus
	switch strings.ToUpper(result.Status) {
	case "SUCCESS", "COMPLETED":
		newStatus = models.StatusSuccess
	case "FAILED", "CANCELLED":
		newStatus = models.StatusFailed
	default:
		// PROCESSING/PENDING: still waiting on the payer, keep local state.
		return &StatusResponse{Transaction: tx, GatewayStatus: result.Status}, nil
	}

	applied, err := s.store.UpdateStatus(ctx, tx.ID, newStatus, "")
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction status: %v", err)
	}
	if applied {
		s.publishTerminal(tx, newStatus)
	}

	updated, err := s.store.FindByID(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Transaction: updated, GatewayStatus: result.Status}, nil
}

// Cancel marks a non-terminal transaction failed on explicit user request.
func (s *PaymentService) Cancel(ctx context.Context, id string) error {
	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if tx.Status.Terminal() {
		return ErrInvalidOperation
	}

	applied, err := s.store.UpdateStatus(ctx, id, models.StatusFailed, "")
	if err != nil {
		return fmt.Errorf("failed to cancel transaction: %v", err)
	}
	if !applied {
		// Lost the race against a success signal.
		return ErrInvalidOperation
	}

	if err := s.store.UpdateDescription(ctx, id, tx.Description+" (Cancelled by User)"); err != nil {
		log.Printf("Failed to annotate cancelled transaction %s: %v", id, err)
	}

	log.Printf("Transaction explicitly cancelled by user: transaction_id=%s", id)
	s.publishTerminal(tx, models.StatusFailed)
	return nil
}

// List returns transactions newest first, optionally filtered by status.
func (s *PaymentService) List(ctx context.Context, status string) ([]models.Transaction, error) {
	var filter models.TransactionStatus
	if status != "" {
		switch models.TransactionStatus(status) {
		case models.StatusPending, models.StatusProcessing, models.StatusSuccess, models.StatusFailed:
			filter = models.TransactionStatus(status)
		default:
			return nil, fmt.Errorf("%w: invalid status filter %q", ErrValidation, status)
		}
	}
	return s.store.List(ctx, filter)
}

func (s *PaymentService) publishTerminal(tx *models.Transaction, status models.TransactionStatus) {
	if !status.Terminal() {
		return
	}
	event := events.TransactionStatusChanged{
		TransactionID: tx.ID,
		Status:        string(status),
		Provider:      tx.Provider,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		OccurredAt:    time.Now(),
	}
	if err := s.events.Publish(EventTopic, event); err != nil {
		log.Printf("Failed to publish transaction event for %s: %v", tx.ID, err)
	}
}
