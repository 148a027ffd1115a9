package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStudentLedgerRepository implements billing.StudentLedgerRepository using GORM
type GormStudentLedgerRepository struct {
	db *gorm.DB
}

// NewGormStudentLedgerRepository creates a new GormStudentLedgerRepository
func NewGormStudentLedgerRepository(db *gorm.DB) *GormStudentLedgerRepository {
	return &GormStudentLedgerRepository{db: db}
}

// FindByStudent returns the student's ledger or billing.ErrLedgerNotFound
func (r *GormStudentLedgerRepository) FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID) (*billing.StudentLedger, error) {
	return r.find(r.db.WithContext(ctx), tenantID, studentID)
}

// FindByStudentForUpdate is FindByStudent with SELECT ... FOR UPDATE.
// It must run inside a transaction; sqlite ignores the locking clause.
func (r *GormStudentLedgerRepository) FindByStudentForUpdate(ctx context.Context, tenantID, studentID uuid.UUID) (*billing.StudentLedger, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, studentID)
}

func (r *GormStudentLedgerRepository) find(db *gorm.DB, tenantID, studentID uuid.UUID) (*billing.StudentLedger, error) {
	var model models.StudentLedgerModel
	err := db.Where("tenant_id = ? AND student_id = ?", tenantID, studentID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrLedgerNotFound
	}
	if err != nil {
		return nil, translateError(err, "find student ledger")
	}
	return model.ToDomain(), nil
}

// FindDue returns up to limit active ledgers, across all tenants, that are enrolled
// on or before referenceDate and not yet billed for its month. Results are ordered
// by ID and start strictly after afterID, so callers page with the last ID seen.
func (r *GormStudentLedgerRepository) FindDue(ctx context.Context, referenceDate time.Time, afterID uuid.UUID, limit int) ([]billing.StudentLedger, error) {
	ref := billing.CalendarDate(referenceDate)
	monthStart := billing.MonthYearOf(ref).FirstDay()

	var rows []models.StudentLedgerModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(billing.LedgerStatusActive)).
		Where("enrollment_date <= ?", ref).
		Where("last_fee_calculation_date IS NULL OR last_fee_calculation_date < ?", monthStart).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "find due ledgers")
	}

	ledgers := make([]billing.StudentLedger, 0, len(rows))
	for i := range rows {
		ledgers = append(ledgers, *rows[i].ToDomain())
	}
	return ledgers, nil
}

// Create inserts a new ledger, returning billing.ErrLedgerAlreadyExists for a duplicate student
func (r *GormStudentLedgerRepository) Create(ctx context.Context, ledger *billing.StudentLedger) error {
	err := r.db.WithContext(ctx).Create(models.StudentLedgerModelFromDomain(ledger)).Error
	if IsUniqueViolation(err) {
		return billing.ErrLedgerAlreadyExists
	}
	return translateError(err, "create student ledger")
}

// SaveWithLock updates the ledger only if the stored version is ledger.Version-1
func (r *GormStudentLedgerRepository) SaveWithLock(ctx context.Context, ledger *billing.StudentLedger) error {
	model := models.StudentLedgerModelFromDomain(ledger)
	result := r.db.WithContext(ctx).
		Model(&models.StudentLedgerModel{}).
		Where("id = ? AND version = ?", ledger.ID, ledger.Version-1).
		Updates(map[string]any{
			"status":                    model.Status,
			"contact_email":             model.ContactEmail,
			"admission_fee_paid":        model.AdmissionFeePaid,
			"first_period_billed":       model.FirstPeriodBilled,
			"total_fee_amount":          model.TotalFeeAmount,
			"paid_amount":               model.PaidAmount,
			"pending_amount":            model.PendingAmount,
			"last_fee_calculation_date": model.LastFeeCalculationDate,
			"version":                   model.Version,
		})

	if result.Error != nil {
		return translateError(result.Error, "save student ledger")
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ billing.StudentLedgerRepository = (*GormStudentLedgerRepository)(nil)
