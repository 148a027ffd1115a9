package billing

import (
	"context"
	"sync"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
)

// memTxScope runs fn directly against the in-memory repositories and keeps
// saved events for assertions.
type memTxScope struct {
	ledgerRepo   billing.StudentLedgerRepository
	scheduleRepo billing.MonthlyScheduleRepository
	historyRepo  billing.CalculationHistoryRepository
	paymentRepo  billing.PaymentRecordRepository
	catalogRepo  billing.FeeCatalogRepository

	mu     sync.Mutex
	events []shared.DomainEvent
}

func newMemTxScope(
	ledgerRepo billing.StudentLedgerRepository,
	scheduleRepo billing.MonthlyScheduleRepository,
	historyRepo billing.CalculationHistoryRepository,
	paymentRepo billing.PaymentRecordRepository,
	catalogRepo billing.FeeCatalogRepository,
) *memTxScope {
	return &memTxScope{
		ledgerRepo:   ledgerRepo,
		scheduleRepo: scheduleRepo,
		historyRepo:  historyRepo,
		paymentRepo:  paymentRepo,
		catalogRepo:  catalogRepo,
	}
}

// Execute runs fn without a transaction.
func (s *memTxScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LedgerRepo returns the ledger repository.
func (s *memTxScope) LedgerRepo() billing.StudentLedgerRepository {
	return s.ledgerRepo
}

// ScheduleRepo returns the monthly schedule repository.
func (s *memTxScope) ScheduleRepo() billing.MonthlyScheduleRepository {
	return s.scheduleRepo
}

// HistoryRepo returns the calculation history repository.
func (s *memTxScope) HistoryRepo() billing.CalculationHistoryRepository {
	return s.historyRepo
}

// PaymentRepo returns the payment record repository.
func (s *memTxScope) PaymentRepo() billing.PaymentRecordRepository {
	return s.paymentRepo
}

// CatalogRepo returns the fee catalog repository.
func (s *memTxScope) CatalogRepo() billing.FeeCatalogRepository {
	return s.catalogRepo
}

// SaveEvents keeps events in memory.
func (s *memTxScope) SaveEvents(_ context.Context, events ...shared.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// SavedEvents returns a copy of every event saved so far.
func (s *memTxScope) SavedEvents() []shared.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shared.DomainEvent, len(s.events))
	copy(out, s.events)
	return out
}

var (
	_ TransactionScope          = (*memTxScope)(nil)
	_ TransactionalRepositories = (*memTxScope)(nil)
)
