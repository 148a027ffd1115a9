package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	"github.com/academy/feebilling/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *billingAPI) upload(path, field, content string) (int, apiEnvelope) {
	a.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "catalog.csv")
	require.NoError(a.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.TenantHeaderKey, a.tenant)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env apiEnvelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestBillingHandler_ImportFeeCatalog(t *testing.T) {
	api := newBillingAPI(t)
	classID := uuid.NewString()
	const path = "/api/v1/billing/fee-catalog/import"

	code, env := api.upload(path, "file",
		"class_id,course_type,admission_fee,monthly_fee,yearly_fee\n"+
			classID+",monthly,1000,500,0\n"+
			classID+",yearly,1000,0,6000\n")
	require.Equal(t, http.StatusOK, code)
	var result appbilling.FeeCatalogImportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Applied)
	assert.Equal(t, 2, result.ImportedRows)

	code, env = api.do(http.MethodGet, "/api/v1/billing/fee-catalog", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), env.Meta.Total)

	t.Run("row errors are reported", func(t *testing.T) {
		code, env := api.upload(path, "file",
			"class_id,course_type,admission_fee,monthly_fee,yearly_fee\n"+
				"bogus,monthly,0,0,0\n")
		require.Equal(t, http.StatusOK, code)
		var result appbilling.FeeCatalogImportResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.False(t, result.Applied)
		assert.Equal(t, 1, result.ErrorRows)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "class_id", result.Errors[0].Column)
	})

	t.Run("missing columns", func(t *testing.T) {
		code, env := api.upload(path, "file", "class_id\n"+classID+"\n")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		code, env := api.upload(path, "attachment", "class_id\n")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})
}
