// Package models contains the GORM persistence models for the billing tables.
//
// Domain types stay free of ORM tags. Each model converts to and from its
// domain type with ToDomain and a ...FromDomain constructor, and repositories
// only ever hand domain values to callers.
//
// Tables:
//   - fee_catalog: FeeCatalogModel
//   - student_ledgers: StudentLedgerModel
//   - fee_calculation_history: CalculationHistoryModel
//   - monthly_fee_schedules: MonthlyScheduleModel
//   - fee_payments: PaymentRecordModel
//   - outbox_events: OutboxEntryModel
package models

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&FeeCatalogModel{},
		&StudentLedgerModel{},
		&CalculationHistoryModel{},
		&MonthlyScheduleModel{},
		&PaymentRecordModel{},
		&OutboxEntryModel{},
	}
}
