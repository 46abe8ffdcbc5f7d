package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

func newTx() *models.Transaction {
	return &models.Transaction{
		UserID:         "user-1",
		DoctorID:       "doctor-1",
		Amount:         decimal.NewFromInt(1000),
		Currency:       "TZS",
		Provider:       "Vodacom",
		PaymentAccount: "0752345678",
		Status:         models.StatusPending,
	}
}

func TestCreateAssignsIdentity(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	tx := newTx()
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if tx.ID == "" {
		t.Fatal("expected ID to be assigned")
	}
	if tx.CreatedAt.IsZero() || tx.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := store.FindByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.Amount.Equal(tx.Amount) {
		t.Errorf("amount mismatch: got %s, want %s", got.Amount, tx.Amount)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	t.Parallel()
	store := NewStore()

	if _, err := store.FindByID(context.Background(), "missing"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusSkipsSuccess(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	tx := newTx()
	store.Create(ctx, tx)

	applied, err := store.UpdateStatus(ctx, tx.ID, models.StatusSuccess, "")
	if err != nil || !applied {
		t.Fatalf("expected update to apply, got applied=%v err=%v", applied, err)
	}

	applied, err = store.UpdateStatus(ctx, tx.ID, models.StatusFailed, "late failure")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if applied {
		t.Error("expected update on succeeded transaction to be skipped")
	}

	got, _ := store.FindByID(ctx, tx.ID)
	if got.Status != models.StatusSuccess {
		t.Errorf("status regressed to %s", got.Status)
	}
	if got.FailureReason != "" {
		t.Errorf("failure reason written on skipped update: %q", got.FailureReason)
	}
}

func TestUpdateStatusRecordsFailureReason(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	tx := newTx()
	store.Create(ctx, tx)

	if _, err := store.UpdateStatus(ctx, tx.ID, models.StatusFailed, "gateway timeout"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := store.FindByID(ctx, tx.ID)
	if got.FailureReason != "gateway timeout" {
		t.Errorf("expected failure reason recorded, got %q", got.FailureReason)
	}
}

func TestSetExternalReferenceOnce(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	tx := newTx()
	store.Create(ctx, tx)

	if err := store.SetExternalReference(ctx, tx.ID, "EXT-1"); err != nil {
		t.Fatalf("SetExternalReference failed: %v", err)
	}
	if err := store.SetExternalReference(ctx, tx.ID, "EXT-2"); err == nil {
		t.Error("expected second SetExternalReference to fail")
	}

	got, err := store.FindByExternalReference(ctx, "EXT-1")
	if err != nil {
		t.Fatalf("FindByExternalReference failed: %v", err)
	}
	if got.ID != tx.ID {
		t.Errorf("found wrong transaction %s", got.ID)
	}
}

func TestFindActiveRespectsWindowAndStatus(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	tx := newTx()
	store.Create(ctx, tx)

	if _, err := store.FindActive(ctx, "user-1", "doctor-1", time.Now().Add(-time.Minute)); err != nil {
		t.Errorf("expected in-window pending transaction to be found: %v", err)
	}

	// Outside the window.
	if _, err := store.FindActive(ctx, "user-1", "doctor-1", time.Now().Add(time.Minute)); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound outside window, got %v", err)
	}

	// Different payee.
	if _, err := store.FindActive(ctx, "user-1", "doctor-2", time.Now().Add(-time.Minute)); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound for different doctor, got %v", err)
	}

	// Terminal transactions are not in-flight.
	store.UpdateStatus(ctx, tx.ID, models.StatusFailed, "")
	if _, err := store.FindActive(ctx, "user-1", "doctor-1", time.Now().Add(-time.Minute)); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound after failure, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	a := newTx()
	store.Create(ctx, a)
	b := newTx()
	b.DoctorID = "doctor-2"
	store.Create(ctx, b)
	store.UpdateStatus(ctx, b.ID, models.StatusProcessing, "")

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(all))
	}

	processing, err := store.List(ctx, models.StatusProcessing)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != b.ID {
		t.Errorf("expected only transaction %s in processing list", b.ID)
	}
}
