package billing

import (
	"context"
	"time"

	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
)

// FeeCatalogRepository reads and maintains the fee catalog
type FeeCatalogRepository interface {
	// Lookup returns ErrCatalogMiss when no entry exists.
	Lookup(ctx context.Context, tenantID, classID uuid.UUID, courseType CourseType) (*FeeCatalogEntry, error)
	Upsert(ctx context.Context, entry *FeeCatalogEntry) error
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]FeeCatalogEntry, int64, error)
}

// StudentLedgerRepository persists ledgers
type StudentLedgerRepository interface {
	FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID) (*StudentLedger, error)
	// FindByStudentForUpdate locks the ledger row for the rest of the transaction.
	FindByStudentForUpdate(ctx context.Context, tenantID, studentID uuid.UUID) (*StudentLedger, error)
	// FindDue returns active ledgers due for the month of referenceDate across all
	// tenants, ordered by ID and starting after afterID.
	FindDue(ctx context.Context, referenceDate time.Time, afterID uuid.UUID, limit int) ([]StudentLedger, error)
	Create(ctx context.Context, ledger *StudentLedger) error
	// SaveWithLock persists the ledger if its stored version is ledger.Version-1,
	// returning shared.ErrConcurrencyConflict otherwise.
	SaveWithLock(ctx context.Context, ledger *StudentLedger) error
}

// CalculationHistoryRepository appends and reads calculation history
type CalculationHistoryRepository interface {
	Append(ctx context.Context, entry *CalculationHistoryEntry) error
	HasCatalogMiss(ctx context.Context, tenantID, studentID uuid.UUID, period MonthYear) (bool, error)
	FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]CalculationHistoryEntry, int64, error)
}

// MonthlyScheduleRepository manages (student, month) slots
type MonthlyScheduleRepository interface {
	// FindByStudentAndMonth returns shared.ErrNotFound when no slot exists.
	FindByStudentAndMonth(ctx context.Context, tenantID, studentID uuid.UUID, period MonthYear) (*MonthlySchedule, error)
	// Create returns ErrScheduleConflict when the slot already exists.
	Create(ctx context.Context, schedule *MonthlySchedule) error
	// MarkProcessed flips an unprocessed slot, returning ErrScheduleConflict if it was already processed.
	MarkProcessed(ctx context.Context, schedule *MonthlySchedule) error
	FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID) ([]MonthlySchedule, error)
}

// PaymentRecordRepository persists payment records
type PaymentRecordRepository interface {
	Create(ctx context.Context, payment *PaymentRecord) error
	FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]PaymentRecord, int64, error)
}
