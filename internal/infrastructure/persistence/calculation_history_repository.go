package persistence

import (
	"context"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/persistence/models"
	"github.com/academy/feebilling/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCalculationHistoryRepository implements billing.CalculationHistoryRepository using GORM
type GormCalculationHistoryRepository struct {
	db *gorm.DB
}

// NewGormCalculationHistoryRepository creates a new GormCalculationHistoryRepository
func NewGormCalculationHistoryRepository(db *gorm.DB) *GormCalculationHistoryRepository {
	return &GormCalculationHistoryRepository{db: db}
}

// Append inserts an entry. A second billed entry for the same month violates the
// partial unique index and is reported as billing.ErrScheduleConflict.
func (r *GormCalculationHistoryRepository) Append(ctx context.Context, entry *billing.CalculationHistoryEntry) error {
	err := r.db.WithContext(ctx).Create(models.CalculationHistoryModelFromDomain(entry)).Error
	if IsUniqueViolation(err) {
		return billing.ErrScheduleConflict
	}
	return translateError(err, "append calculation history")
}

// HasCatalogMiss reports whether a catalog miss was already recorded for the month
func (r *GormCalculationHistoryRepository) HasCatalogMiss(ctx context.Context, tenantID, studentID uuid.UUID, period billing.MonthYear) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CalculationHistoryModel{}).
		Where("tenant_id = ? AND student_id = ? AND month_year = ? AND calculation_type = ?",
			tenantID, studentID, period.String(), "").
		Count(&count).Error
	if err != nil {
		return false, translateError(err, "count catalog misses")
	}
	return count > 0, nil
}

// FindByStudent lists the student's history, newest first by default
func (r *GormCalculationHistoryRepository) FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]billing.CalculationHistoryEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.CalculationHistoryModel{}).
		Scopes(tenant.Scope(tenantID)).Where("student_id = ?", studentID).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count calculation history")
	}

	var rows []models.CalculationHistoryModel
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("student_id = ?", studentID)
	if err := paginate(query, filter, CalculationSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, "list calculation history")
	}

	entries := make([]billing.CalculationHistoryEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, nil
}

var _ billing.CalculationHistoryRepository = (*GormCalculationHistoryRepository)(nil)
