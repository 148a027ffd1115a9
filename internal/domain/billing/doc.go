// Package billing provides the domain model for recurring student fee billing.
//
// This package implements the fee billing bounded context, which is responsible for:
//   - Deciding, once per calendar month, how much each enrolled student owes
//   - Applying the enrollment-day cutoff rule to the first billing cycle
//   - Recording an append-only calculation history for audit
//   - Keeping the student ledger balanced as payments arrive
//
// Key Aggregates:
//   - StudentLedger: per-student financial state (total, paid, pending)
//
// Entities and Value Objects:
//   - FeeCatalogEntry: admission, monthly and yearly fee for a class and course type
//   - MonthlySchedule: one row per student and month, the idempotency guard
//   - CalculationHistoryEntry: immutable record of a billing decision
//   - PaymentRecord: immutable record of a received payment
//   - MonthYear, CourseType, BillingState, FeePolicy
//
// The billing domain integrates with:
//   - The student directory: as the source of class, course type and enrollment date
//   - Notification and accounting consumers: through ledger events
package billing
