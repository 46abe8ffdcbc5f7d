package worker

import (
	"context"
	"log"
	"time"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/services"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

// Sweeper periodically pushes processing transactions through the status
// poll so payments whose callback never arrived still reach a terminal
// state. It only ever calls the service's poll operation, so the
// success-is-final rule applies to sweeps the same as to any other signal.
type Sweeper struct {
	service  *services.PaymentService
	store    storage.TransactionStore
	interval time.Duration
}

func NewSweeper(service *services.PaymentService, store storage.TransactionStore, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, store: store, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("Status sweeper started: interval=%s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Status sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep polls every processing transaction once.
func (s *Sweeper) Sweep(ctx context.Context) {
	transactions, err := s.store.List(ctx, models.StatusProcessing)
	if err != nil {
		log.Printf("Sweeper failed to list processing transactions: %v", err)
		return
	}

	for _, tx := range transactions {
		resp, err := s.service.CheckStatus(ctx, tx.ID)
		if err != nil {
			log.Printf("Sweeper status check failed for transaction %s: %v", tx.ID, err)
			continue
		}
		if resp.Transaction.Status != tx.Status {
			log.Printf("Sweeper finalized transaction %s: %s -> %s", tx.ID, tx.Status, resp.Transaction.Status)
		}
	}
}
