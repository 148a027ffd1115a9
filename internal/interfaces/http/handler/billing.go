package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BillingRunTrigger starts a billing run outside the daily schedule
type BillingRunTrigger interface {
	TriggerImmediate(ctx context.Context, referenceDate time.Time) (*appbilling.BillingRunResult, error)
}

// BillingHandler serves the /billing routes
type BillingHandler struct {
	BaseHandler
	ledgers  *appbilling.LedgerService
	payments *appbilling.PaymentService
	queries  *appbilling.QueryService
	runs     BillingRunTrigger
	runGuard []gin.HandlerFunc
}

// BillingHandlerOption configures a BillingHandler
type BillingHandlerOption func(*BillingHandler)

// WithRunGuard puts middleware (a rate limit, typically) in front of POST /billing/runs
func WithRunGuard(mw ...gin.HandlerFunc) BillingHandlerOption {
	return func(h *BillingHandler) {
		h.runGuard = append(h.runGuard, mw...)
	}
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(
	ledgers *appbilling.LedgerService,
	payments *appbilling.PaymentService,
	queries *appbilling.QueryService,
	runs BillingRunTrigger,
	opts ...BillingHandlerOption,
) *BillingHandler {
	h := &BillingHandler{
		ledgers:  ledgers,
		payments: payments,
		queries:  queries,
		runs:     runs,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the billing routes under rg
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/billing")

	g.POST("/students", h.OpenLedger)
	students := g.Group("/students/:student_id")
	students.GET("/ledger", h.GetLedger)
	students.PATCH("/status", h.ChangeLedgerStatus)
	students.GET("/payments", h.ListPayments)
	students.POST("/payments", h.ApplyPayment)
	students.GET("/calculations", h.ListCalculations)
	students.GET("/schedules", h.ListSchedules)

	g.PUT("/fee-catalog", h.UpsertFeeCatalog)
	g.GET("/fee-catalog", h.ListFeeCatalog)
	g.POST("/fee-catalog/import", h.ImportFeeCatalog)

	g.POST("/runs", append(h.runGuard, h.RunBilling)...)
}

// OpenLedger godoc
// @ID           openLedger
//
//	@Summary		Open a student ledger
//	@Description	Creates the billing ledger of a newly enrolled student
//	@Tags			billing
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string				true	"Tenant ID"
//	@Param			request		body		OpenLedgerRequest	true	"Ledger to open"
//	@Success		201			{object}	APIResponse[appbilling.LedgerSnapshot]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Router			/billing/students [post]
func (h *BillingHandler) OpenLedger(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req OpenLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	enrolled, err := time.Parse(time.DateOnly, req.EnrollmentDate)
	if err != nil {
		h.BadRequest(c, "enrollment_date must be YYYY-MM-DD")
		return
	}
	cmd := appbilling.OpenLedgerCommand{
		StudentID:      uuid.MustParse(req.StudentID),
		ClassID:        uuid.MustParse(req.ClassID),
		ContactEmail:   req.ContactEmail,
		CourseType:     req.CourseType,
		EnrollmentDate: enrolled,
	}
	if req.SOCenterID != nil {
		center := uuid.MustParse(*req.SOCenterID)
		cmd.SOCenterID = &center
	}

	snapshot, err := h.ledgers.OpenLedger(c.Request.Context(), tenantID, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, snapshot)
}

// GetLedger godoc
// @ID           getLedger
//
//	@Summary		Get a student ledger
//	@Description	Returns total, paid and pending amounts with the billing flags
//	@Tags			billing
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			student_id	path		string	true	"Student ID"	format(uuid)
//	@Success		200			{object}	APIResponse[appbilling.LedgerSnapshot]
//	@Failure		404			{object}	ErrorResponse
//	@Router			/billing/students/{student_id}/ledger [get]
func (h *BillingHandler) GetLedger(c *gin.Context) {
	tenantID, studentID, ok := h.studentScope(c)
	if !ok {
		return
	}

	snapshot, err := h.queries.GetLedger(c.Request.Context(), tenantID, studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// ChangeLedgerStatus godoc
// @ID           changeLedgerStatus
//
//	@Summary		Change ledger status
//	@Description	Only active ledgers are billed by the monthly run
//	@Tags			billing
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string						true	"Tenant ID"
//	@Param			student_id	path		string						true	"Student ID"	format(uuid)
//	@Param			request		body		ChangeLedgerStatusRequest	true	"New status"
//	@Success		200			{object}	APIResponse[appbilling.LedgerSnapshot]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/billing/students/{student_id}/status [patch]
func (h *BillingHandler) ChangeLedgerStatus(c *gin.Context) {
	tenantID, studentID, ok := h.studentScope(c)
	if !ok {
		return
	}

	var req ChangeLedgerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	snapshot, err := h.ledgers.ChangeLedgerStatus(c.Request.Context(), tenantID, studentID, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// ApplyPayment godoc
// @ID           applyPayment
//
//	@Summary		Apply a payment
//	@Description	Records a payment and moves it from pending to paid. Overpayment raises the total.
//	@Tags			billing
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string				true	"Tenant ID"
//	@Param			student_id	path		string				true	"Student ID"	format(uuid)
//	@Param			request		body		ApplyPaymentRequest	true	"Payment"
//	@Success		201			{object}	APIResponse[appbilling.Receipt]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		422			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/billing/students/{student_id}/payments [post]
func (h *BillingHandler) ApplyPayment(c *gin.Context) {
	tenantID, studentID, ok := h.studentScope(c)
	if !ok {
		return
	}

	var req ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	receipt, err := h.payments.ApplyPayment(c.Request.Context(), tenantID, appbilling.ApplyPaymentCommand{
		StudentID:     studentID,
		Amount:        req.Amount,
		Method:        req.Method,
		ReceiptNumber: req.ReceiptNumber,
		MonthYear:     req.MonthYear,
		PaidAt:        req.PaidAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receipt)
}

// ListPayments godoc
// @ID           listPayments
//
//	@Summary		List payments of a student
//	@Tags			billing
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			student_id	path		string	true	"Student ID"	format(uuid)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			order_by	query		string	false	"Sort field"	Enums(paid_at, amount, created_at)
//	@Param			order_dir	query		string	false	"Sort order"	Enums(asc, desc)
//	@Success		200			{object}	APIResponse[[]appbilling.PaymentDTO]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/billing/students/{student_id}/payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	tenantID, studentID, ok := h.studentScope(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	page, err := h.queries.ListPayments(c.Request.Context(), tenantID, studentID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// ListCalculations godoc
// @ID           listCalculations
//
//	@Summary		List fee calculations of a student
//	@Description	Every charge and every catalog miss recorded by billing runs
//	@Tags			billing
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			student_id	path		string	true	"Student ID"	format(uuid)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	APIResponse[[]appbilling.CalculationDTO]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/billing/students/{student_id}/calculations [get]
func (h *BillingHandler) ListCalculations(c *gin.Context) {
	tenantID, studentID, ok := h.studentScope(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	page, err := h.queries.ListCalculations(c.Request.Context(), tenantID, studentID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// ListSchedules godoc
// @ID           listSchedules
//
//	@Summary		List monthly schedule rows of a student
//	@Tags			billing
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			student_id	path		string	true	"Student ID"	format(uuid)
//	@Success		200			{object}	APIResponse[[]appbilling.ScheduleDTO]
//	@Router			/billing/students/{student_id}/schedules [get]
func (h *BillingHandler) ListSchedules(c *gin.Context) {
	tenantID, studentID, ok := h.studentScope(c)
	if !ok {
		return
	}

	schedules, err := h.queries.ListSchedules(c.Request.Context(), tenantID, studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, schedules)
}

// UpsertFeeCatalog godoc
// @ID           upsertFeeCatalog
//
//	@Summary		Create or update a fee catalog entry
//	@Tags			fee-catalog
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string					true	"Tenant ID"
//	@Param			request		body		UpsertFeeCatalogRequest	true	"Fees"
//	@Success		200			{object}	APIResponse[appbilling.FeeCatalogEntryDTO]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/billing/fee-catalog [put]
func (h *BillingHandler) UpsertFeeCatalog(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req UpsertFeeCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	entry, err := h.ledgers.UpsertFeeCatalog(c.Request.Context(), tenantID, appbilling.UpsertFeeCatalogCommand{
		ClassID:      uuid.MustParse(req.ClassID),
		CourseType:   req.CourseType,
		AdmissionFee: req.AdmissionFee,
		MonthlyFee:   req.MonthlyFee,
		YearlyFee:    req.YearlyFee,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// ImportFeeCatalog godoc
// @ID           importFeeCatalog
//
//	@Summary		Bulk upsert the fee catalog from CSV
//	@Description	Columns: class_id, course_type, admission_fee, monthly_fee, yearly_fee. The file is applied only when every row is valid.
//	@Tags			fee-catalog
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			file		formData	file	true	"CSV file"
//	@Success		200			{object}	APIResponse[appbilling.FeeCatalogImportResult]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/billing/fee-catalog/import [post]
func (h *BillingHandler) ImportFeeCatalog(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "A CSV file is required in the 'file' form field")
		return
	}
	defer file.Close()

	result, err := h.ledgers.ImportFeeCatalog(c.Request.Context(), tenantID, file)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListFeeCatalog godoc
// @ID           listFeeCatalog
//
//	@Summary		List fee catalog entries
//	@Tags			fee-catalog
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	APIResponse[[]appbilling.FeeCatalogEntryDTO]
//	@Router			/billing/fee-catalog [get]
func (h *BillingHandler) ListFeeCatalog(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	page, err := h.ledgers.ListFeeCatalog(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// RunBilling godoc
// @ID           runBilling
//
//	@Summary		Run monthly billing now
//	@Description	Bills every active ledger of every tenant for the reference date. Safe to repeat.
//	@Tags			billing-runs
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string				true	"Tenant ID"
//	@Param			request		body		RunBillingRequest	false	"Reference date"
//	@Success		200			{object}	APIResponse[appbilling.BillingRunResult]
//	@Failure		409			{object}	ErrorResponse
//	@Failure		429			{object}	ErrorResponse
//	@Router			/billing/runs [post]
func (h *BillingHandler) RunBilling(c *gin.Context) {
	var req RunBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindError(c, err)
		return
	}

	ref := time.Now().UTC()
	if req.ReferenceDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.ReferenceDate)
		if err != nil {
			h.BadRequest(c, "reference_date must be YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	result, err := h.runs.TriggerImmediate(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *BillingHandler) studentScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	studentID, ok := h.uuidParam(c, "student_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, studentID, true
}

func (h *BillingHandler) listFilter(c *gin.Context) (filter shared.Filter, ok bool) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return filter, false
	}
	return req.ToFilter(), true
}
