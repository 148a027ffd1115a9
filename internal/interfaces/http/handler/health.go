package handler

import (
	"context"
	"net/http"
	"time"

	appevent "github.com/academy/feebilling/internal/application/event"
	"github.com/academy/feebilling/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SchedulerStatusProvider exposes the billing scheduler state
type SchedulerStatusProvider interface {
	Status() scheduler.BillingSchedulerStatus
}

// OutboxStatsProvider reports the event outbox backlog
type OutboxStatsProvider interface {
	GetStats(ctx context.Context) (*appevent.OutboxStatsDTO, error)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                            `json:"status" example:"healthy"`
	Database  string                            `json:"database" example:"up"`
	Scheduler *scheduler.BillingSchedulerStatus `json:"scheduler,omitempty"`
	Outbox    *appevent.OutboxStatsDTO          `json:"outbox,omitempty"`
	Timestamp time.Time                         `json:"timestamp"`
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	db        Pinger
	scheduler SchedulerStatusProvider
	outbox    OutboxStatsProvider
}

// HealthOption configures a HealthHandler
type HealthOption func(*HealthHandler)

// WithOutboxStats adds the outbox backlog to the health report
func WithOutboxStats(p OutboxStatsProvider) HealthOption {
	return func(h *HealthHandler) {
		h.outbox = p
	}
}

// NewHealthHandler creates a HealthHandler. scheduler may be nil.
func NewHealthHandler(db Pinger, scheduler SchedulerStatusProvider, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{db: db, scheduler: scheduler}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health godoc
// @ID           health
//
//	@Summary		Health check
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Database: "up", Timestamp: time.Now().UTC()}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}
	if h.scheduler != nil {
		s := h.scheduler.Status()
		resp.Scheduler = &s
	}
	if h.outbox != nil && status == http.StatusOK {
		if stats, err := h.outbox.GetStats(ctx); err == nil {
			resp.Outbox = stats
		}
	}
	c.JSON(status, resp)
}
