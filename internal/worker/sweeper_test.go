package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/gateway"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/services"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage/memory"
)

type scriptedGateway struct {
	mu           sync.Mutex
	statusResult gateway.StatusResult
	statusCalls  int
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) InitiatePayment(ctx context.Context, account string, amount decimal.Decimal, orderReference string) gateway.InitiateResult {
	return gateway.InitiateResult{Success: true, ExternalID: "EXT-1", Status: gateway.StatusProcessing}
}

func (g *scriptedGateway) CheckStatus(ctx context.Context, reference string) gateway.StatusResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	return g.statusResult
}

func TestSweepFinalizesProcessingTransactions(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{statusResult: gateway.StatusResult{Success: true, Status: gateway.StatusSuccess, RawStatus: "success"}}
	store := memory.NewStore()
	svc := services.NewPaymentService(store, gw, nil)
	ctx := context.Background()

	resp, err := svc.Initiate(ctx, services.InitiateRequest{
		UserID:         "user-1",
		DoctorID:       "doctor-1",
		Amount:         decimal.NewFromInt(1000),
		Provider:       "Vodacom",
		PaymentAccount: "0752345678",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	sweeper := NewSweeper(svc, store, time.Second)
	sweeper.Sweep(ctx)

	tx, err := store.FindByID(ctx, resp.TransactionID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if tx.Status != models.StatusSuccess {
		t.Errorf("expected sweep to finalize transaction, got %s", tx.Status)
	}

	// A second sweep has nothing left to poll.
	before := gw.statusCalls
	sweeper.Sweep(ctx)
	if gw.statusCalls != before {
		t.Errorf("terminal transaction polled again by sweep")
	}
}
