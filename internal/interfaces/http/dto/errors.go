package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
)

// Request-level error codes raised by middleware
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout         = "REQUEST_TIMEOUT"
)

// Resource error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "INVALID_STATE"
)

// Billing error codes
const (
	ErrCodeInvalidPayment   = "INVALID_PAYMENT"
	ErrCodeCatalogMiss      = "CATALOG_MISS"
	ErrCodeScheduleConflict = "SCHEDULE_CONFLICT"
	ErrCodeTransientStore   = "TRANSIENT_STORE_ERROR"
	ErrCodeLedgerInvariant  = "LEDGER_INVARIANT_VIOLATION"
	ErrCodeRunInProgress    = "RUN_IN_PROGRESS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeBadRequest: http.StatusBadRequest,

	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTimeout:         http.StatusGatewayTimeout,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidPayment:   http.StatusUnprocessableEntity,
	ErrCodeCatalogMiss:      http.StatusUnprocessableEntity,
	ErrCodeScheduleConflict: http.StatusConflict,
	ErrCodeTransientStore:   http.StatusServiceUnavailable,
	ErrCodeLedgerInvariant:  http.StatusInternalServerError,
	ErrCodeRunInProgress:    http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// inputErrorCodes are domain codes for malformed input, all reported as VALIDATION_ERROR
var inputErrorCodes = map[string]bool{
	"INVALID_INPUT":         true,
	"INVALID_FEE":           true,
	"INVALID_COURSE_TYPE":   true,
	"INVALID_MONTH_YEAR":    true,
	"INVALID_CUTOFF_DAY":    true,
	"INVALID_LEDGER_STATUS": true,
	"INVALID_ENROLLMENT":    true,
}

// NormalizeErrorCode folds domain input codes into VALIDATION_ERROR.
// INVALID_PAYMENT is kept so clients can tell a rejected payment from a malformed request.
func NormalizeErrorCode(code string) string {
	if inputErrorCodes[code] {
		return ErrCodeValidation
	}
	return code
}
