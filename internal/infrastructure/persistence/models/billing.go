package models

import (
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeCatalogModel is the persistence model for one catalog row
type FeeCatalogModel struct {
	BaseModel
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_fee_catalog_class_course,priority:1"`
	ClassID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_fee_catalog_class_course,priority:2"`
	CourseType   string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_fee_catalog_class_course,priority:3"`
	AdmissionFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MonthlyFee   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	YearlyFee    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (FeeCatalogModel) TableName() string {
	return "fee_catalog"
}

// ToDomain converts the model to a domain FeeCatalogEntry
func (m *FeeCatalogModel) ToDomain() *billing.FeeCatalogEntry {
	return &billing.FeeCatalogEntry{
		BaseEntity:   m.BaseModel.ToDomain(),
		TenantID:     m.TenantID,
		ClassID:      m.ClassID,
		CourseType:   billing.CourseType(m.CourseType),
		AdmissionFee: m.AdmissionFee,
		MonthlyFee:   m.MonthlyFee,
		YearlyFee:    m.YearlyFee,
	}
}

// FeeCatalogModelFromDomain creates a model from a domain FeeCatalogEntry
func FeeCatalogModelFromDomain(e *billing.FeeCatalogEntry) *FeeCatalogModel {
	m := &FeeCatalogModel{
		TenantID:     e.TenantID,
		ClassID:      e.ClassID,
		CourseType:   e.CourseType.String(),
		AdmissionFee: e.AdmissionFee,
		MonthlyFee:   e.MonthlyFee,
		YearlyFee:    e.YearlyFee,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// StudentLedgerModel is the persistence model for a student's ledger.
// A NULL last_fee_calculation_date means the ledger was never billed.
type StudentLedgerModel struct {
	TenantAggregateModel
	StudentID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_student_ledgers_student"`
	ClassID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	SOCenterID             *uuid.UUID      `gorm:"type:uuid"`
	ContactEmail           string          `gorm:"type:varchar(255)"`
	CourseType             string          `gorm:"type:varchar(20);not null"`
	EnrollmentDate         time.Time       `gorm:"type:date;not null"`
	Status                 string          `gorm:"type:varchar(20);not null;default:active;index"`
	AdmissionFeePaid       bool            `gorm:"not null;default:false"`
	FirstPeriodBilled      bool            `gorm:"not null;default:false"`
	TotalFeeAmount         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PendingAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastFeeCalculationDate *time.Time      `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (StudentLedgerModel) TableName() string {
	return "student_ledgers"
}

// ToDomain converts the model to a domain StudentLedger
func (m *StudentLedgerModel) ToDomain() *billing.StudentLedger {
	l := &billing.StudentLedger{
		StudentID:         m.StudentID,
		ClassID:           m.ClassID,
		SOCenterID:        m.SOCenterID,
		ContactEmail:      m.ContactEmail,
		CourseType:        billing.CourseType(m.CourseType),
		EnrollmentDate:    billing.CalendarDate(m.EnrollmentDate),
		Status:            billing.LedgerStatus(m.Status),
		AdmissionFeePaid:  m.AdmissionFeePaid,
		FirstPeriodBilled: m.FirstPeriodBilled,
		TotalFeeAmount:    m.TotalFeeAmount,
		PaidAmount:        m.PaidAmount,
		PendingAmount:     m.PendingAmount,
		Billing:           billing.BillingStateFromDate(m.LastFeeCalculationDate),
	}
	m.PopulateTenantAggregateRoot(&l.TenantAggregateRoot)
	return l
}

// StudentLedgerModelFromDomain creates a model from a domain StudentLedger
func StudentLedgerModelFromDomain(l *billing.StudentLedger) *StudentLedgerModel {
	m := &StudentLedgerModel{
		StudentID:              l.StudentID,
		ClassID:                l.ClassID,
		SOCenterID:             l.SOCenterID,
		ContactEmail:           l.ContactEmail,
		CourseType:             l.CourseType.String(),
		EnrollmentDate:         billing.CalendarDate(l.EnrollmentDate),
		Status:                 string(l.Status),
		AdmissionFeePaid:       l.AdmissionFeePaid,
		FirstPeriodBilled:      l.FirstPeriodBilled,
		TotalFeeAmount:         l.TotalFeeAmount,
		PaidAmount:             l.PaidAmount,
		PendingAmount:          l.PendingAmount,
		LastFeeCalculationDate: billing.LastCalculationDate(l.Billing),
	}
	m.FromDomainTenantAggregateRoot(l.TenantAggregateRoot)
	return m
}

// CalculationHistoryModel is the persistence model for one billing decision.
// An empty calculation_type marks a catalog miss.
type CalculationHistoryModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_fee_history_student_month,priority:1"`
	StudentID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_fee_history_student_month,priority:2"`
	MonthYear       string          `gorm:"type:varchar(7);not null;index:idx_fee_history_student_month,priority:3"`
	CalculationDate time.Time       `gorm:"type:date;not null"`
	CalculationType string          `gorm:"type:varchar(20);not null"`
	FeeAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	EnrollmentDay   *int
	Reason          string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CalculationHistoryModel) TableName() string {
	return "fee_calculation_history"
}

// ToDomain converts the model to a domain CalculationHistoryEntry
func (m *CalculationHistoryModel) ToDomain() (*billing.CalculationHistoryEntry, error) {
	period, err := billing.ParseMonthYear(m.MonthYear)
	if err != nil {
		return nil, err
	}
	return &billing.CalculationHistoryEntry{
		ID:              m.ID,
		TenantID:        m.TenantID,
		StudentID:       m.StudentID,
		CalculationDate: billing.CalendarDate(m.CalculationDate),
		MonthYear:       period,
		CalculationType: billing.CalculationType(m.CalculationType),
		FeeAmount:       m.FeeAmount,
		EnrollmentDay:   m.EnrollmentDay,
		Reason:          m.Reason,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// CalculationHistoryModelFromDomain creates a model from a domain CalculationHistoryEntry
func CalculationHistoryModelFromDomain(e *billing.CalculationHistoryEntry) *CalculationHistoryModel {
	return &CalculationHistoryModel{
		ID:              e.ID,
		TenantID:        e.TenantID,
		StudentID:       e.StudentID,
		MonthYear:       e.MonthYear.String(),
		CalculationDate: billing.CalendarDate(e.CalculationDate),
		CalculationType: e.CalculationType.String(),
		FeeAmount:       e.FeeAmount,
		EnrollmentDay:   e.EnrollmentDay,
		Reason:          e.Reason,
		CreatedAt:       e.CreatedAt,
	}
}

// MonthlyScheduleModel is the persistence model for a (student, month) slot.
// The unique index is what makes a billing month claimable exactly once.
type MonthlyScheduleModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_monthly_schedule_student_month,priority:1"`
	StudentID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_monthly_schedule_student_month,priority:2"`
	MonthYear     string          `gorm:"type:varchar(7);not null;uniqueIndex:idx_monthly_schedule_student_month,priority:3"`
	ScheduledDate time.Time       `gorm:"type:date;not null"`
	FeeAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	IsProcessed   bool            `gorm:"not null;default:false"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MonthlyScheduleModel) TableName() string {
	return "monthly_fee_schedules"
}

// ToDomain converts the model to a domain MonthlySchedule
func (m *MonthlyScheduleModel) ToDomain() (*billing.MonthlySchedule, error) {
	period, err := billing.ParseMonthYear(m.MonthYear)
	if err != nil {
		return nil, err
	}
	return &billing.MonthlySchedule{
		ID:            m.ID,
		TenantID:      m.TenantID,
		StudentID:     m.StudentID,
		MonthYear:     period,
		ScheduledDate: billing.CalendarDate(m.ScheduledDate),
		FeeAmount:     m.FeeAmount,
		IsProcessed:   m.IsProcessed,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// MonthlyScheduleModelFromDomain creates a model from a domain MonthlySchedule
func MonthlyScheduleModelFromDomain(s *billing.MonthlySchedule) *MonthlyScheduleModel {
	return &MonthlyScheduleModel{
		ID:            s.ID,
		TenantID:      s.TenantID,
		StudentID:     s.StudentID,
		MonthYear:     s.MonthYear.String(),
		ScheduledDate: billing.CalendarDate(s.ScheduledDate),
		FeeAmount:     s.FeeAmount,
		IsProcessed:   s.IsProcessed,
		ProcessedAt:   s.ProcessedAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// PaymentRecordModel is the persistence model for a received payment
type PaymentRecordModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_fee_payments_student,priority:1"`
	StudentID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_fee_payments_student,priority:2"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method        string          `gorm:"type:varchar(20);not null"`
	ReceiptNumber string          `gorm:"type:varchar(64);not null"`
	MonthYear     *string         `gorm:"type:varchar(7)"`
	PaidAt        time.Time       `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentRecordModel) TableName() string {
	return "fee_payments"
}

// ToDomain converts the model to a domain PaymentRecord
func (m *PaymentRecordModel) ToDomain() (*billing.PaymentRecord, error) {
	p := &billing.PaymentRecord{
		ID:            m.ID,
		TenantID:      m.TenantID,
		StudentID:     m.StudentID,
		Amount:        m.Amount,
		Method:        billing.PaymentMethod(m.Method),
		ReceiptNumber: m.ReceiptNumber,
		PaidAt:        m.PaidAt,
		CreatedAt:     m.CreatedAt,
	}
	if m.MonthYear != nil {
		period, err := billing.ParseMonthYear(*m.MonthYear)
		if err != nil {
			return nil, err
		}
		p.MonthYear = &period
	}
	return p, nil
}

// PaymentRecordModelFromDomain creates a model from a domain PaymentRecord
func PaymentRecordModelFromDomain(p *billing.PaymentRecord) *PaymentRecordModel {
	m := &PaymentRecordModel{
		ID:            p.ID,
		TenantID:      p.TenantID,
		StudentID:     p.StudentID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		ReceiptNumber: p.ReceiptNumber,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
	if p.MonthYear != nil {
		s := p.MonthYear.String()
		m.MonthYear = &s
	}
	return m
}
