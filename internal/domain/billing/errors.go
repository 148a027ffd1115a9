package billing

import "github.com/academy/feebilling/internal/domain/shared"

// Billing engine error taxonomy.
var (
	// ErrCatalogMiss means no fee catalog entry exists for the student's class and course type.
	// The student is skipped for the cycle and a history entry is recorded.
	ErrCatalogMiss = shared.NewDomainError("CATALOG_MISS", "No fee catalog entry for class and course type")

	// ErrScheduleConflict means the (student, month) schedule row was already claimed.
	// Billing treats it as an idempotent no-op.
	ErrScheduleConflict = shared.NewDomainError("SCHEDULE_CONFLICT", "Billing month already claimed for student")

	// ErrInvalidPayment rejects non-positive amounts, unknown methods and unknown students.
	ErrInvalidPayment = shared.NewDomainError("INVALID_PAYMENT", "Invalid payment")

	// ErrTransientStore wraps retryable storage failures (serialization, deadlock, lost connection).
	ErrTransientStore = shared.NewDomainError("TRANSIENT_STORE_ERROR", "Temporary storage failure, retry later")

	ErrLedgerNotFound      = shared.ErrNotFound.WithMessage("Student ledger not found")
	ErrLedgerAlreadyExists = shared.ErrAlreadyExists.WithMessage("Student ledger already exists")
	ErrInvalidFee          = shared.NewDomainError("INVALID_FEE", "Fee amounts must be non-negative")
	ErrInvalidCourseType   = shared.NewDomainError("INVALID_COURSE_TYPE", "Course type must be monthly or yearly")
	ErrInvalidMonthYear    = shared.NewDomainError("INVALID_MONTH_YEAR", "Month must be formatted as YYYY-MM")
	ErrInvalidCutoffDay    = shared.NewDomainError("INVALID_CUTOFF_DAY", "Cutoff day must be between 1 and 28")
	ErrInvalidLedgerStatus = shared.NewDomainError("INVALID_LEDGER_STATUS", "Invalid ledger status")
	ErrLedgerInvariant     = shared.NewDomainError("LEDGER_INVARIANT_VIOLATION", "Ledger total must equal paid plus pending")
	ErrStatusTransition    = shared.ErrInvalidState.WithMessage("Ledger status transition not allowed")
	ErrInvalidEnrollment   = shared.NewDomainError("INVALID_ENROLLMENT", "Student, class and enrollment date are required")
)
