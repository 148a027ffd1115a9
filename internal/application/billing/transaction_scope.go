package billing

import (
	"context"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
)

// TransactionScope provides transactional access to billing repositories.
// Everything done through the repositories handed to fn commits or rolls back together.
type TransactionScope interface {
	// Execute runs fn in a database transaction. An error from fn rolls back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the billing repositories bound to one transaction.
//
// The StudentLedger is the only aggregate root. Schedule, history and payment rows
// are append-mostly records written next to it in the same transaction, and
// SaveEvents stores the ledger's domain events in the outbox so they commit with it.
type TransactionalRepositories interface {
	LedgerRepo() billing.StudentLedgerRepository
	ScheduleRepo() billing.MonthlyScheduleRepository
	HistoryRepo() billing.CalculationHistoryRepository
	PaymentRepo() billing.PaymentRecordRepository
	CatalogRepo() billing.FeeCatalogRepository
	SaveEvents(ctx context.Context, events ...shared.DomainEvent) error
}
