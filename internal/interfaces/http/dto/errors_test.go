package dto

import (
	"net/http"
	"testing"

	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"INVALID_INPUT", ErrCodeValidation},
		{"INVALID_FEE", ErrCodeValidation},
		{"INVALID_MONTH_YEAR", ErrCodeValidation},
		{"INVALID_PAYMENT", ErrCodeInvalidPayment},
		{"NOT_FOUND", ErrCodeNotFound},
		{"SOMETHING_ELSE", "SOMETHING_ELSE"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorCode(tt.code))
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(ErrCodeValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(ErrCodeInvalidPayment))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodeAlreadyExists))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodeRunInProgress))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(ErrCodeTransientStore))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("UNKNOWN_CODE"))
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse(&shared.Paginated[string]{Total: 0, Page: 1, PageSize: 20})

	assert.True(t, resp.Success)
	assert.Equal(t, []string{}, resp.Data)
	assert.Equal(t, int64(0), resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.PageSize)
}

func TestListRequest_ToFilter(t *testing.T) {
	f := ListRequest{PageSize: 50, OrderDir: "asc"}.ToFilter()

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 50, f.PageSize)
	assert.Equal(t, "created_at", f.OrderBy)
	assert.Equal(t, "asc", f.OrderDir)
}
