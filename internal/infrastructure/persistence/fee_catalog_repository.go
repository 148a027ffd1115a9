package persistence

import (
	"context"
	"errors"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/persistence/models"
	"github.com/academy/feebilling/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFeeCatalogRepository implements billing.FeeCatalogRepository using GORM
type GormFeeCatalogRepository struct {
	db *gorm.DB
}

// NewGormFeeCatalogRepository creates a new GormFeeCatalogRepository
func NewGormFeeCatalogRepository(db *gorm.DB) *GormFeeCatalogRepository {
	return &GormFeeCatalogRepository{db: db}
}

// Lookup finds the entry for a class and course type, returning billing.ErrCatalogMiss if none exists
func (r *GormFeeCatalogRepository) Lookup(ctx context.Context, tenantID, classID uuid.UUID, courseType billing.CourseType) (*billing.FeeCatalogEntry, error) {
	var model models.FeeCatalogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND class_id = ? AND course_type = ?", tenantID, classID, courseType.String()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrCatalogMiss
	}
	if err != nil {
		return nil, translateError(err, "lookup fee catalog")
	}
	return model.ToDomain(), nil
}

// Upsert inserts the entry or overwrites the fees of the existing (class, course type) row.
// On return the entry carries the stored row's ID and creation time.
func (r *GormFeeCatalogRepository) Upsert(ctx context.Context, entry *billing.FeeCatalogEntry) error {
	model := models.FeeCatalogModelFromDomain(entry)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "class_id"}, {Name: "course_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"admission_fee", "monthly_fee", "yearly_fee", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return translateError(err, "upsert fee catalog")
	}

	stored, err := r.Lookup(ctx, entry.TenantID, entry.ClassID, entry.CourseType)
	if err != nil {
		return err
	}
	entry.BaseEntity = stored.BaseEntity
	return nil
}

// FindAllForTenant lists the tenant's catalog entries
func (r *GormFeeCatalogRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.FeeCatalogEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.FeeCatalogModel{}).
		Scopes(tenant.Scope(tenantID)).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count fee catalog")
	}

	var rows []models.FeeCatalogModel
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID))
	if err := paginate(query, filter, FeeCatalogSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, "list fee catalog")
	}

	entries := make([]billing.FeeCatalogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, total, nil
}

var _ billing.FeeCatalogRepository = (*GormFeeCatalogRepository)(nil)
