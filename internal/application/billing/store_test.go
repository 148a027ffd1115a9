package billing

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type studentKey struct {
	tenant  uuid.UUID
	student uuid.UUID
}

type catalogKey struct {
	tenant     uuid.UUID
	class      uuid.UUID
	courseType billing.CourseType
}

type scheduleKey struct {
	studentKey
	period billing.MonthYear
}

// memStore is an in-memory implementation of every billing repository.
// Reads return copies so callers cannot change stored state without saving.
type memStore struct {
	mu        sync.Mutex
	ledgers   map[studentKey]*billing.StudentLedger
	catalog   map[catalogKey]*billing.FeeCatalogEntry
	schedules map[scheduleKey]*billing.MonthlySchedule
	history   []*billing.CalculationHistoryEntry
	payments  []*billing.PaymentRecord

	transientLockFailures int
	brokenStudents        map[uuid.UUID]error
}

func newMemStore() *memStore {
	return &memStore{
		ledgers:        map[studentKey]*billing.StudentLedger{},
		catalog:        map[catalogKey]*billing.FeeCatalogEntry{},
		schedules:      map[scheduleKey]*billing.MonthlySchedule{},
		brokenStudents: map[uuid.UUID]error{},
	}
}

func (m *memStore) scope() *memTxScope {
	return newMemTxScope(ledgerRepo{m}, scheduleRepo{m}, historyRepo{m}, paymentRepo{m}, catalogRepo{m})
}

func copyLedger(l *billing.StudentLedger) *billing.StudentLedger {
	cp := *l
	cp.ClearDomainEvents()
	return &cp
}

func (m *memStore) ledger(tenantID, studentID uuid.UUID) *billing.StudentLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyLedger(m.ledgers[studentKey{tenantID, studentID}])
}

func (m *memStore) historyFor(studentID uuid.UUID) []billing.CalculationHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.CalculationHistoryEntry
	for _, h := range m.history {
		if h.StudentID == studentID {
			out = append(out, *h)
		}
	}
	return out
}

type ledgerRepo struct{ m *memStore }

func (r ledgerRepo) FindByStudent(_ context.Context, tenantID, studentID uuid.UUID) (*billing.StudentLedger, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	l, ok := r.m.ledgers[studentKey{tenantID, studentID}]
	if !ok {
		return nil, billing.ErrLedgerNotFound
	}
	return copyLedger(l), nil
}

func (r ledgerRepo) FindByStudentForUpdate(ctx context.Context, tenantID, studentID uuid.UUID) (*billing.StudentLedger, error) {
	r.m.mu.Lock()
	if err, ok := r.m.brokenStudents[studentID]; ok {
		r.m.mu.Unlock()
		return nil, err
	}
	if r.m.transientLockFailures > 0 {
		r.m.transientLockFailures--
		r.m.mu.Unlock()
		return nil, billing.ErrTransientStore
	}
	r.m.mu.Unlock()
	return r.FindByStudent(ctx, tenantID, studentID)
}

func (r ledgerRepo) FindDue(_ context.Context, referenceDate time.Time, afterID uuid.UUID, limit int) ([]billing.StudentLedger, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var due []billing.StudentLedger
	for _, l := range r.m.ledgers {
		if bytes.Compare(l.ID[:], afterID[:]) > 0 && l.IsDue(referenceDate) {
			due = append(due, *copyLedger(l))
		}
	}
	sort.Slice(due, func(i, j int) bool { return bytes.Compare(due[i].ID[:], due[j].ID[:]) < 0 })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r ledgerRepo) Create(_ context.Context, l *billing.StudentLedger) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := studentKey{l.TenantID, l.StudentID}
	if _, ok := r.m.ledgers[k]; ok {
		return billing.ErrLedgerAlreadyExists
	}
	r.m.ledgers[k] = copyLedger(l)
	return nil
}

func (r ledgerRepo) SaveWithLock(_ context.Context, l *billing.StudentLedger) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := studentKey{l.TenantID, l.StudentID}
	stored, ok := r.m.ledgers[k]
	if !ok || stored.GetVersion() != l.GetVersion()-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.ledgers[k] = copyLedger(l)
	return nil
}

type catalogRepo struct{ m *memStore }

func (r catalogRepo) Lookup(_ context.Context, tenantID, classID uuid.UUID, ct billing.CourseType) (*billing.FeeCatalogEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.catalog[catalogKey{tenantID, classID, ct}]
	if !ok {
		return nil, billing.ErrCatalogMiss
	}
	cp := *e
	return &cp, nil
}

func (r catalogRepo) Upsert(_ context.Context, e *billing.FeeCatalogEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *e
	r.m.catalog[catalogKey{e.TenantID, e.ClassID, e.CourseType}] = &cp
	return nil
}

func (r catalogRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]billing.FeeCatalogEntry, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []billing.FeeCatalogEntry
	for k, e := range r.m.catalog {
		if k.tenant == tenantID {
			out = append(out, *e)
		}
	}
	return out, int64(len(out)), nil
}

type scheduleRepo struct{ m *memStore }

func (r scheduleRepo) FindByStudentAndMonth(_ context.Context, tenantID, studentID uuid.UUID, period billing.MonthYear) (*billing.MonthlySchedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.schedules[scheduleKey{studentKey{tenantID, studentID}, period}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r scheduleRepo) Create(_ context.Context, s *billing.MonthlySchedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := scheduleKey{studentKey{s.TenantID, s.StudentID}, s.MonthYear}
	if _, ok := r.m.schedules[k]; ok {
		return billing.ErrScheduleConflict
	}
	cp := *s
	r.m.schedules[k] = &cp
	return nil
}

func (r scheduleRepo) MarkProcessed(_ context.Context, s *billing.MonthlySchedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := scheduleKey{studentKey{s.TenantID, s.StudentID}, s.MonthYear}
	stored, ok := r.m.schedules[k]
	if !ok || stored.IsProcessed {
		return billing.ErrScheduleConflict
	}
	cp := *s
	r.m.schedules[k] = &cp
	return nil
}

func (r scheduleRepo) FindByStudent(_ context.Context, tenantID, studentID uuid.UUID) ([]billing.MonthlySchedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []billing.MonthlySchedule
	for k, s := range r.m.schedules {
		if k.tenant == tenantID && k.student == studentID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthYear.Before(out[j].MonthYear) })
	return out, nil
}

type historyRepo struct{ m *memStore }

func (r historyRepo) Append(_ context.Context, e *billing.CalculationHistoryEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *e
	r.m.history = append(r.m.history, &cp)
	return nil
}

func (r historyRepo) HasCatalogMiss(_ context.Context, tenantID, studentID uuid.UUID, period billing.MonthYear) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, h := range r.m.history {
		if h.TenantID == tenantID && h.StudentID == studentID && h.MonthYear == period && h.IsCatalogMiss() {
			return true, nil
		}
	}
	return false, nil
}

func (r historyRepo) FindByStudent(_ context.Context, tenantID, studentID uuid.UUID, _ shared.Filter) ([]billing.CalculationHistoryEntry, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []billing.CalculationHistoryEntry
	for _, h := range r.m.history {
		if h.TenantID == tenantID && h.StudentID == studentID {
			out = append(out, *h)
		}
	}
	return out, int64(len(out)), nil
}

type paymentRepo struct{ m *memStore }

func (r paymentRepo) Create(_ context.Context, p *billing.PaymentRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *p
	r.m.payments = append(r.m.payments, &cp)
	return nil
}

func (r paymentRepo) FindByStudent(_ context.Context, tenantID, studentID uuid.UUID, _ shared.Filter) ([]billing.PaymentRecord, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []billing.PaymentRecord
	for _, p := range r.m.payments {
		if p.TenantID == tenantID && p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

// fixtures

func seedCatalog(m *memStore, tenantID, classID uuid.UUID, ct billing.CourseType, admission, monthly, yearly int64) {
	e, err := billing.NewFeeCatalogEntry(tenantID, classID, ct,
		decimal.NewFromInt(admission), decimal.NewFromInt(monthly), decimal.NewFromInt(yearly))
	if err != nil {
		panic(err)
	}
	_ = catalogRepo{m}.Upsert(context.Background(), e)
}

func seedLedger(m *memStore, tenantID, classID uuid.UUID, ct billing.CourseType, enrolled time.Time) *billing.StudentLedger {
	l, err := billing.NewStudentLedger(tenantID, billing.NewLedgerInput{
		StudentID:      uuid.New(),
		ClassID:        classID,
		ContactEmail:   "parent@example.com",
		CourseType:     ct,
		EnrollmentDate: enrolled,
	})
	if err != nil {
		panic(err)
	}
	if err := (ledgerRepo{m}).Create(context.Background(), l); err != nil {
		panic(err)
	}
	return l
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// mockMetrics records calls for assertions
type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordStudentOutcome(ctx context.Context, outcome string, fee decimal.Decimal) {
	m.Called(ctx, outcome, fee)
}

func (m *mockMetrics) RecordRun(ctx context.Context, d time.Duration, failed bool) {
	m.Called(ctx, d, failed)
}

func (m *mockMetrics) RecordPayment(ctx context.Context, amount decimal.Decimal, overpaid bool) {
	m.Called(ctx, amount, overpaid)
}

func (m *mockMetrics) RecordRetry(ctx context.Context, operation string) {
	m.Called(ctx, operation)
}

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) StoreRunReport(ctx context.Context, result *BillingRunResult) error {
	return m.Called(ctx, result).Error(0)
}

var errBroken = errors.New("row is corrupt")
