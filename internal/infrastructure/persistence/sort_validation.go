package persistence

import (
	"strings"

	"github.com/academy/feebilling/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if it is whitelisted, defaultField otherwise
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// FeeCatalogSortFields contains allowed sort fields for the fee catalog
var FeeCatalogSortFields = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"class_id":      true,
	"course_type":   true,
	"admission_fee": true,
	"monthly_fee":   true,
	"yearly_fee":    true,
}

// PaymentSortFields contains allowed sort fields for fee payments
var PaymentSortFields = map[string]bool{
	"created_at":     true,
	"paid_at":        true,
	"amount":         true,
	"method":         true,
	"receipt_number": true,
}

// CalculationSortFields contains allowed sort fields for the calculation history
var CalculationSortFields = map[string]bool{
	"created_at":       true,
	"calculation_date": true,
	"month_year":       true,
	"fee_amount":       true,
}

// paginate applies whitelisted ordering, offset and limit from filter.
// The id tiebreaker keeps pages stable when the sort column has duplicates.
func paginate(db *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	dir := ValidateSortOrder(filter.OrderDir)
	db = db.Order(field + " " + dir).Order("id " + dir)

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = shared.DefaultFilter().PageSize
	}
	return db.Offset(filter.Offset()).Limit(pageSize)
}
