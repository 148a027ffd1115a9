package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerServiceConfig contains configuration for LedgerService
type LedgerServiceConfig struct {
	// PrecreateSchedule inserts the unprocessed schedule row for the
	// enrollment month when a ledger is opened.
	PrecreateSchedule bool
}

// LedgerService opens ledgers, changes their status and maintains the fee catalog
type LedgerService struct {
	txScope     TransactionScope
	catalogRepo billing.FeeCatalogRepository
	config      LedgerServiceConfig
	logger      *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	catalogRepo billing.FeeCatalogRepository,
	logger *zap.Logger,
	config LedgerServiceConfig,
) *LedgerService {
	return &LedgerService{
		txScope:     txScope,
		catalogRepo: catalogRepo,
		config:      config,
		logger:      logger,
	}
}

// OpenLedger creates an unbilled ledger with zero balances
func (s *LedgerService) OpenLedger(ctx context.Context, tenantID uuid.UUID, cmd OpenLedgerCommand) (*LedgerSnapshot, error) {
	courseType, err := billing.ParseCourseType(cmd.CourseType)
	if err != nil {
		return nil, err
	}

	ledger, err := billing.NewStudentLedger(tenantID, billing.NewLedgerInput{
		StudentID:      cmd.StudentID,
		ClassID:        cmd.ClassID,
		SOCenterID:     cmd.SOCenterID,
		ContactEmail:   strings.TrimSpace(cmd.ContactEmail),
		CourseType:     courseType,
		EnrollmentDate: cmd.EnrollmentDate,
	})
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, findErr := repos.LedgerRepo().FindByStudent(ctx, tenantID, cmd.StudentID)
		switch {
		case findErr == nil:
			return billing.ErrLedgerAlreadyExists
		case !errors.Is(findErr, shared.ErrNotFound):
			return findErr
		}

		if err := repos.LedgerRepo().Create(ctx, ledger); err != nil {
			return err
		}
		if s.config.PrecreateSchedule {
			schedule := billing.NewMonthlySchedule(tenantID, ledger.StudentID, ledger.EnrollmentPeriod())
			if err := repos.ScheduleRepo().Create(ctx, schedule); err != nil && !errors.Is(err, billing.ErrScheduleConflict) {
				return err
			}
		}
		return repos.SaveEvents(ctx, ledger.GetDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}
	ledger.ClearDomainEvents()

	s.logger.Info("Student ledger opened",
		zap.String("tenant_id", tenantID.String()),
		zap.String("student_id", ledger.StudentID.String()),
		zap.String("course_type", courseType.String()),
		zap.Time("enrollment_date", ledger.EnrollmentDate),
	)

	snapshot := ToLedgerSnapshot(ledger)
	return &snapshot, nil
}

// ChangeLedgerStatus moves a ledger between active, inactive and dropped_out.
// Setting the current status again is a no-op.
func (s *LedgerService) ChangeLedgerStatus(ctx context.Context, tenantID, studentID uuid.UUID, status string) (*LedgerSnapshot, error) {
	target := billing.LedgerStatus(strings.ToLower(strings.TrimSpace(status)))

	var snapshot LedgerSnapshot
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ledger, err := repos.LedgerRepo().FindByStudentForUpdate(ctx, tenantID, studentID)
		if err != nil {
			return err
		}

		version := ledger.GetVersion()
		if err := ledger.ChangeStatus(target); err != nil {
			return err
		}
		if ledger.GetVersion() != version {
			if err := repos.LedgerRepo().SaveWithLock(ctx, ledger); err != nil {
				return err
			}
			if err := repos.SaveEvents(ctx, ledger.GetDomainEvents()...); err != nil {
				return err
			}
			ledger.ClearDomainEvents()
		}
		snapshot = ToLedgerSnapshot(ledger)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Student ledger status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("status", snapshot.Status),
	)
	return &snapshot, nil
}

// UpsertFeeCatalog creates or replaces the fees for a class and course type
func (s *LedgerService) UpsertFeeCatalog(ctx context.Context, tenantID uuid.UUID, cmd UpsertFeeCatalogCommand) (*FeeCatalogEntryDTO, error) {
	courseType, err := billing.ParseCourseType(cmd.CourseType)
	if err != nil {
		return nil, err
	}

	entry, err := billing.NewFeeCatalogEntry(tenantID, cmd.ClassID, courseType, cmd.AdmissionFee, cmd.MonthlyFee, cmd.YearlyFee)
	if err != nil {
		return nil, err
	}
	if err := s.catalogRepo.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Fee catalog entry saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("class_id", cmd.ClassID.String()),
		zap.String("course_type", courseType.String()),
	)

	dto := ToFeeCatalogEntryDTO(entry)
	return &dto, nil
}

// ListFeeCatalog lists the tenant's catalog entries
func (s *LedgerService) ListFeeCatalog(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[FeeCatalogEntryDTO], error) {
	entries, total, err := s.catalogRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]FeeCatalogEntryDTO, 0, len(entries))
	for i := range entries {
		items = append(items, ToFeeCatalogEntryDTO(&entries[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}
