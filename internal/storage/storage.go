package storage

import (
	"context"
	"errors"
	"time"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
)

var ErrNotFound = errors.New("transaction not found")

// TransactionStore persists payment attempts. Implementations must enforce
// success-is-final inside UpdateStatus so that concurrent callbacks
// and polls cannot downgrade a confirmed success.
type TransactionStore interface {
	// Create persists a new transaction, assigning its ID and timestamps.
	Create(ctx context.Context, tx *models.Transaction) error

	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	FindByExternalReference(ctx context.Context, ref string) (*models.Transaction, error)

	// FindActive returns an in-flight (pending or processing) transaction
	// for the same payer/payee created at or after since, or ErrNotFound.
	FindActive(ctx context.Context, userID, doctorID string, since time.Time) (*models.Transaction, error)

	// List returns transactions, newest first, optionally filtered by status.
	List(ctx context.Context, status models.TransactionStatus) ([]models.Transaction, error)

	// SetExternalReference records the gateway-assigned id. It is set at
	// most once; later calls on a transaction that already has one fail.
	SetExternalReference(ctx context.Context, id, ref string) error

	// UpdateStatus conditionally moves the transaction to status. The update
	// is skipped (applied=false) when the record already reads success.
	// reason, when non-empty, is stored as the failure reason.
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) (applied bool, err error)

	// UpdateDescription replaces the free-text description.
	UpdateDescription(ctx context.Context, id, description string) error
}
