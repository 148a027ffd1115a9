package persistence

import (
	"context"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"gorm.io/gorm"
)

// EventSaver stores domain events using the caller's transaction
type EventSaver interface {
	PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// GormTransactionScope implements appbilling.TransactionScope using GORM transactions.
// Events saved through the repositories are written to the outbox in the same transaction.
type GormTransactionScope struct {
	db     *gorm.DB
	events EventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope.
// A nil events saver drops events.
func NewGormTransactionScope(db *gorm.DB, events EventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, events: events}
}

// Execute runs fn within a database transaction, rolling back if it returns an error
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, events: s.events})
	})
}

type gormTransactionalRepositories struct {
	tx     *gorm.DB
	events EventSaver
}

func (r *gormTransactionalRepositories) LedgerRepo() billing.StudentLedgerRepository {
	return NewGormStudentLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) ScheduleRepo() billing.MonthlyScheduleRepository {
	return NewGormMonthlyScheduleRepository(r.tx)
}

func (r *gormTransactionalRepositories) HistoryRepo() billing.CalculationHistoryRepository {
	return NewGormCalculationHistoryRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() billing.PaymentRecordRepository {
	return NewGormPaymentRecordRepository(r.tx)
}

func (r *gormTransactionalRepositories) CatalogRepo() billing.FeeCatalogRepository {
	return NewGormFeeCatalogRepository(r.tx)
}

// SaveEvents writes events to the outbox on the current transaction
func (r *gormTransactionalRepositories) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if r.events == nil || len(events) == 0 {
		return nil
	}
	return r.events.PublishWithTx(ctx, r.tx, events...)
}

var (
	_ appbilling.TransactionScope          = (*GormTransactionScope)(nil)
	_ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
