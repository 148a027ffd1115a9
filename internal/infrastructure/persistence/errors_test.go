package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped deadlock", fmt.Errorf("save: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"bad connection", driver.ErrBadConn, true},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"record not found", gorm.ErrRecordNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsUniqueViolation(nil))
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil, "op"))

	cause := &pgconn.PgError{Code: "40001"}
	err := translateError(cause, "save ledger")
	assert.ErrorIs(t, err, billing.ErrTransientStore)
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
	assert.Contains(t, err.Error(), "save ledger")

	plain := translateError(errors.New("syntax error"), "find")
	assert.False(t, errors.Is(plain, billing.ErrTransientStore))
}

func TestGormStudentLedgerRepository_TransientErrorSurfaces(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "student_ledgers"`).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})

	repo := NewGormStudentLedgerRepository(db.DB)
	_, err := repo.FindByStudent(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrTransientStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormMonthlyScheduleRepository_MarkProcessedNoRows(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectExec(`UPDATE "monthly_fee_schedules" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	slot := billing.NewMonthlySchedule(uuid.New(), uuid.New(), billing.MonthYear{Year: 2024, Month: 5})
	err := NewGormMonthlyScheduleRepository(db.DB).MarkProcessed(context.Background(), slot)
	assert.ErrorIs(t, err, billing.ErrScheduleConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
