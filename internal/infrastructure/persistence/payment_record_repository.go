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

// GormPaymentRecordRepository implements billing.PaymentRecordRepository using GORM
type GormPaymentRecordRepository struct {
	db *gorm.DB
}

// NewGormPaymentRecordRepository creates a new GormPaymentRecordRepository
func NewGormPaymentRecordRepository(db *gorm.DB) *GormPaymentRecordRepository {
	return &GormPaymentRecordRepository{db: db}
}

// Create inserts a payment record
func (r *GormPaymentRecordRepository) Create(ctx context.Context, payment *billing.PaymentRecord) error {
	err := r.db.WithContext(ctx).Create(models.PaymentRecordModelFromDomain(payment)).Error
	return translateError(err, "create payment record")
}

// FindByStudent lists the student's payments, newest first by default
func (r *GormPaymentRecordRepository) FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]billing.PaymentRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentRecordModel{}).
		Scopes(tenant.Scope(tenantID)).Where("student_id = ?", studentID).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count payments")
	}

	var rows []models.PaymentRecordModel
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("student_id = ?", studentID)
	if err := paginate(query, filter, PaymentSortFields, "paid_at").Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, "list payments")
	}

	payments := make([]billing.PaymentRecord, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, *p)
	}
	return payments, total, nil
}

var _ billing.PaymentRecordRepository = (*GormPaymentRecordRepository)(nil)
