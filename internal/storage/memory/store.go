package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

// Store is an in-memory TransactionStore. It is safe for concurrent use and
// backs tests and local development.
type Store struct {
	mu           sync.Mutex
	transactions map[string]models.Transaction
}

func NewStore() *Store {
	return &Store{transactions: make(map[string]models.Transaction)}
}

func (s *Store) Create(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	tx.ID = uuid.New().String()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.transactions[tx.ID] = *tx
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &tx, nil
}

func (s *Store) FindByExternalReference(ctx context.Context, ref string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.ExternalReference == ref {
			out := tx
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) FindActive(ctx context.Context, userID, doctorID string, since time.Time) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.UserID != userID || tx.DoctorID != doctorID {
			continue
		}
		if tx.Status != models.StatusPending && tx.Status != models.StatusProcessing {
			continue
		}
		if tx.CreatedAt.Before(since) {
			continue
		}
		out := tx
		return &out, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Store) List(ctx context.Context, status models.TransactionStatus) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, tx := range s.transactions {
		if status != "" && tx.Status != status {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetExternalReference(ctx context.Context, id, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if tx.ExternalReference != "" {
		return errors.New("external reference already set")
	}
	tx.ExternalReference = ref
	tx.UpdatedAt = time.Now()
	s.transactions[id] = tx
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if tx.Status == models.StatusSuccess {
		return false, nil
	}
	tx.Status = status
	if reason != "" {
		tx.FailureReason = reason
	}
	tx.UpdatedAt = time.Now()
	s.transactions[id] = tx
	return true, nil
}

func (s *Store) UpdateDescription(ctx context.Context, id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return storage.ErrNotFound
	}
	tx.Description = description
	tx.UpdatedAt = time.Now()
	s.transactions[id] = tx
	return nil
}

var _ storage.TransactionStore = (*Store)(nil)
