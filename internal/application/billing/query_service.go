package billing

import (
	"context"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
)

// QueryService serves read models for student billing
type QueryService struct {
	ledgerRepo   billing.StudentLedgerRepository
	paymentRepo  billing.PaymentRecordRepository
	historyRepo  billing.CalculationHistoryRepository
	scheduleRepo billing.MonthlyScheduleRepository
}

// NewQueryService creates a new QueryService
func NewQueryService(
	ledgerRepo billing.StudentLedgerRepository,
	paymentRepo billing.PaymentRecordRepository,
	historyRepo billing.CalculationHistoryRepository,
	scheduleRepo billing.MonthlyScheduleRepository,
) *QueryService {
	return &QueryService{
		ledgerRepo:   ledgerRepo,
		paymentRepo:  paymentRepo,
		historyRepo:  historyRepo,
		scheduleRepo: scheduleRepo,
	}
}

// GetLedger returns the current ledger snapshot
func (s *QueryService) GetLedger(ctx context.Context, tenantID, studentID uuid.UUID) (*LedgerSnapshot, error) {
	ledger, err := s.ledgerRepo.FindByStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	snapshot := ToLedgerSnapshot(ledger)
	return &snapshot, nil
}

// ListPayments returns the student's payments, newest first
func (s *QueryService) ListPayments(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) (*shared.Paginated[PaymentDTO], error) {
	records, total, err := s.paymentRepo.FindByStudent(ctx, tenantID, studentID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]PaymentDTO, 0, len(records))
	for i := range records {
		items = append(items, ToPaymentDTO(&records[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListCalculations returns the student's calculation history, newest first
func (s *QueryService) ListCalculations(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) (*shared.Paginated[CalculationDTO], error) {
	entries, total, err := s.historyRepo.FindByStudent(ctx, tenantID, studentID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]CalculationDTO, 0, len(entries))
	for i := range entries {
		items = append(items, ToCalculationDTO(&entries[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListSchedules returns every schedule row of the student in month order
func (s *QueryService) ListSchedules(ctx context.Context, tenantID, studentID uuid.UUID) ([]ScheduleDTO, error) {
	rows, err := s.scheduleRepo.FindByStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	items := make([]ScheduleDTO, 0, len(rows))
	for i := range rows {
		items = append(items, ToScheduleDTO(&rows[i]))
	}
	return items, nil
}
