package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	csvimport "github.com/academy/feebilling/internal/infrastructure/import"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Limits for a fee catalog upload
const (
	MaxCatalogImportRows   = 5000
	MaxCatalogImportErrors = 100
)

// Columns of the fee catalog CSV
var catalogImportColumns = []string{"class_id", "course_type", "admission_fee", "monthly_fee", "yearly_fee"}

// FeeCatalogImportResult reports what an upload did.
// Applied is false whenever any row failed; nothing is written in that case.
type FeeCatalogImportResult struct {
	TotalRows    int                  `json:"total_rows"`
	ImportedRows int                  `json:"imported_rows"`
	ErrorRows    int                  `json:"error_rows"`
	Applied      bool                 `json:"applied"`
	Errors       []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated  bool                 `json:"is_truncated,omitempty"`
	TotalErrors  int                  `json:"total_errors,omitempty"`
}

func catalogImportRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field("class_id").Required().UUID().Build(),
		csvimport.Field("course_type").Required().Custom(func(v string) error {
			if _, err := billing.ParseCourseType(v); err != nil {
				return fmt.Errorf("course_type must be 'monthly' or 'yearly'")
			}
			return nil
		}).Build(),
		csvimport.Field("admission_fee").Decimal().MinValue(decimal.Zero).Build(),
		csvimport.Field("monthly_fee").Decimal().MinValue(decimal.Zero).Build(),
		csvimport.Field("yearly_fee").Decimal().MinValue(decimal.Zero).Build(),
	}
}

// ImportFeeCatalog upserts every row of a fee catalog CSV.
// All rows are validated first and the upserts share one transaction.
// Blank fee cells mean zero.
func (s *LedgerService) ImportFeeCatalog(ctx context.Context, tenantID uuid.UUID, r io.Reader) (*FeeCatalogImportResult, error) {
	parser, err := csvimport.NewParser(r, csvimport.WithMaxRows(MaxCatalogImportRows))
	if err != nil {
		return nil, invalidUpload(err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, invalidUpload(err)
	}
	if missing := parser.MissingHeaders(catalogImportColumns...); len(missing) > 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Missing columns: " + strings.Join(missing, ", "))
	}
	rows, err := parser.ReadAll()
	if err != nil {
		return nil, invalidUpload(err)
	}

	result := &FeeCatalogImportResult{TotalRows: len(rows)}
	validator := csvimport.NewFieldValidator(catalogImportRules(), MaxCatalogImportErrors)
	entries := make([]*billing.FeeCatalogEntry, 0, len(rows))
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		if !validator.ValidateRow(row) {
			result.ErrorRows++
			continue
		}
		entry, err := catalogEntryFromRow(tenantID, row)
		if err != nil {
			validator.Errors().Add(csvimport.RowError{Row: row.Line, Code: csvimport.ErrCodeInvalidValue, Message: err.Error()})
			result.ErrorRows++
			continue
		}
		key := entry.ClassID.String() + "/" + entry.CourseType.String()
		if first, dup := seen[key]; dup {
			validator.Errors().Add(csvimport.RowError{
				Row:     row.Line,
				Code:    csvimport.ErrCodeDuplicateRow,
				Message: fmt.Sprintf("same class and course type as row %d", first),
			})
			result.ErrorRows++
			continue
		}
		seen[key] = row.Line
		entries = append(entries, entry)
	}

	errs := validator.Errors()
	result.Errors = errs.Errors()
	result.IsTruncated = errs.IsTruncated()
	result.TotalErrors = errs.TotalCount()
	if errs.HasErrors() {
		s.logger.Info("Fee catalog import rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("rows", result.TotalRows),
			zap.Int("error_rows", result.ErrorRows),
		)
		return result, nil
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, entry := range entries {
			if err := repos.CatalogRepo().Upsert(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.ImportedRows = len(entries)
	result.Applied = true
	s.logger.Info("Fee catalog imported",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rows", result.ImportedRows),
	)
	return result, nil
}

func catalogEntryFromRow(tenantID uuid.UUID, row *csvimport.Row) (*billing.FeeCatalogEntry, error) {
	classID := uuid.MustParse(row.Get("class_id"))
	courseType, err := billing.ParseCourseType(row.Get("course_type"))
	if err != nil {
		return nil, err
	}
	return billing.NewFeeCatalogEntry(tenantID, classID, courseType,
		feeCell(row, "admission_fee"), feeCell(row, "monthly_fee"), feeCell(row, "yearly_fee"))
}

// feeCell parses an already validated fee cell; blank is zero
func feeCell(row *csvimport.Row, column string) decimal.Decimal {
	v := row.Get(column)
	if v == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(v)
}

func invalidUpload(err error) error {
	if errors.Is(err, csvimport.ErrTooManyRows) {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("At most %d rows per upload", MaxCatalogImportRows))
	}
	return shared.ErrInvalidInput.WithMessage(err.Error())
}
