package persistence

import (
	"context"
	"errors"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMonthlyScheduleRepository implements billing.MonthlyScheduleRepository using GORM.
// The unique (tenant_id, student_id, month_year) index and the conditional update in
// MarkProcessed are what guarantee a month is billed at most once.
type GormMonthlyScheduleRepository struct {
	db *gorm.DB
}

// NewGormMonthlyScheduleRepository creates a new GormMonthlyScheduleRepository
func NewGormMonthlyScheduleRepository(db *gorm.DB) *GormMonthlyScheduleRepository {
	return &GormMonthlyScheduleRepository{db: db}
}

// FindByStudentAndMonth returns the slot or shared.ErrNotFound
func (r *GormMonthlyScheduleRepository) FindByStudentAndMonth(ctx context.Context, tenantID, studentID uuid.UUID, period billing.MonthYear) (*billing.MonthlySchedule, error) {
	var model models.MonthlyScheduleModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ? AND month_year = ?", tenantID, studentID, period.String()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, translateError(err, "find monthly schedule")
	}
	return model.ToDomain()
}

// Create inserts the slot, returning billing.ErrScheduleConflict if it already exists
func (r *GormMonthlyScheduleRepository) Create(ctx context.Context, schedule *billing.MonthlySchedule) error {
	err := r.db.WithContext(ctx).Create(models.MonthlyScheduleModelFromDomain(schedule)).Error
	if IsUniqueViolation(err) {
		return billing.ErrScheduleConflict
	}
	return translateError(err, "create monthly schedule")
}

// MarkProcessed flips an unprocessed slot to processed with the schedule's fee.
// Zero affected rows means another transaction got there first.
func (r *GormMonthlyScheduleRepository) MarkProcessed(ctx context.Context, schedule *billing.MonthlySchedule) error {
	result := r.db.WithContext(ctx).
		Model(&models.MonthlyScheduleModel{}).
		Where("id = ? AND is_processed = ?", schedule.ID, false).
		Updates(map[string]any{
			"is_processed": true,
			"fee_amount":   schedule.FeeAmount,
			"processed_at": schedule.ProcessedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "mark schedule processed")
	}
	if result.RowsAffected == 0 {
		return billing.ErrScheduleConflict
	}
	return nil
}

// FindByStudent lists the student's slots, oldest month first
func (r *GormMonthlyScheduleRepository) FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID) ([]billing.MonthlySchedule, error) {
	var rows []models.MonthlyScheduleModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ?", tenantID, studentID).
		Order("month_year ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "list monthly schedules")
	}

	schedules := make([]billing.MonthlySchedule, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, nil
}

var _ billing.MonthlyScheduleRepository = (*GormMonthlyScheduleRepository)(nil)
