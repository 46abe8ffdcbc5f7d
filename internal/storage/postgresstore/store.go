package postgresstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

// Store is a Postgres-backed TransactionStore.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS transactions(
			id TEXT PRIMARY KEY,
			user_id TEXT,
			doctor_id TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL,
			provider TEXT NOT NULL,
			payment_account TEXT NOT NULL,
			status TEXT NOT NULL,
			external_reference TEXT,
			description TEXT,
			failure_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tx_external_reference ON transactions(external_reference);
		CREATE INDEX IF NOT EXISTS idx_tx_parties ON transactions(user_id, doctor_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status, created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const txColumns = `id, user_id, doctor_id, amount, currency, provider, payment_account,
	status, external_reference, description, failure_reason, created_at, updated_at`

func (s *Store) Create(ctx context.Context, tx *models.Transaction) error {
	now := time.Now()
	tx.ID = uuid.New().String()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	const query = `INSERT INTO transactions(` + txColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		nullable(tx.UserID),
		tx.DoctorID,
		tx.Amount.String(),
		tx.Currency,
		tx.Provider,
		tx.PaymentAccount,
		string(tx.Status),
		nullable(tx.ExternalReference),
		nullable(tx.Description),
		nullable(tx.FailureReason),
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	const query = `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTx(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) FindByExternalReference(ctx context.Context, ref string) (*models.Transaction, error) {
	const query = `SELECT ` + txColumns + ` FROM transactions WHERE external_reference = $1 LIMIT 1`
	return scanTx(s.db.QueryRowContext(ctx, query, ref))
}

func (s *Store) FindActive(ctx context.Context, userID, doctorID string, since time.Time) (*models.Transaction, error) {
	const query = `SELECT ` + txColumns + ` FROM transactions
		WHERE COALESCE(user_id, '') = $1 AND doctor_id = $2
		AND status IN ('pending', 'processing')
		AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`
	return scanTx(s.db.QueryRowContext(ctx, query, userID, doctorID, since))
}

func (s *Store) List(ctx context.Context, status models.TransactionStatus) ([]models.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (s *Store) SetExternalReference(ctx context.Context, id, ref string) error {
	const query = `UPDATE transactions SET external_reference = $1, updated_at = $2
		WHERE id = $3 AND external_reference IS NULL`
	res, err := s.db.ExecContext(ctx, query, ref, time.Now(), id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("external reference already set or transaction missing")
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) (bool, error) {
	// The status guard in the WHERE clause keeps the success check
	// and the write atomic.
	const query = `UPDATE transactions
		SET status = $1, failure_reason = COALESCE(NULLIF($2, ''), failure_reason), updated_at = $3
		WHERE id = $4 AND status <> 'success'`
	res, err := s.db.ExecContext(ctx, query, string(status), reason, time.Now(), id)
	if err != nil {
		return false, err
	}
	if aff, _ := res.RowsAffected(); aff > 0 {
		return true, nil
	}

	if _, err := s.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) UpdateDescription(ctx context.Context, id, description string) error {
	const query = `UPDATE transactions SET description = $1, updated_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, query, description, time.Now(), id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanTx(scanner interface{ Scan(dest ...any) error }) (*models.Transaction, error) {
	var tx models.Transaction
	var userID, externalRef, description, failureReason sql.NullString
	var amount, status string

	err := scanner.Scan(
		&tx.ID,
		&userID,
		&tx.DoctorID,
		&amount,
		&tx.Currency,
		&tx.Provider,
		&tx.PaymentAccount,
		&status,
		&externalRef,
		&description,
		&failureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to decode amount %q: %v", amount, err)
	}
	tx.Amount = dec
	tx.Status = models.TransactionStatus(status)
	tx.UserID = userID.String
	tx.ExternalReference = externalRef.String
	tx.Description = description.String
	tx.FailureReason = failureReason.String
	return &tx, nil
}

var _ storage.TransactionStore = (*Store)(nil)
