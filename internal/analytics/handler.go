package analytics

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

// Counts are the stored counters for one demo class.
type Counts struct {
	DemoClassID       uuid.UUID
	Title             string
	Capacity          int
	Registered        int
	Pending           int
	Approved          int
	Rejected          int
	PaymentsCompleted int
	RevenueCents      int64
	EmailsSent        int
	EmailsFailed      int
}

// Source loads counters.
type Source interface {
	DemoClassCounts(ctx context.Context, id uuid.UUID) (*Counts, error)
}

// SummaryResponse is the JSON shape for GET /admin/demo-classes/:id/analytics.
type SummaryResponse struct {
	DemoClassID        uuid.UUID `json:"demo_class_id"`
	Title              string    `json:"title"`
	Capacity           int       `json:"capacity"`
	SeatsTaken         int       `json:"seats_taken"`
	SeatsLeft          int       `json:"seats_left"`
	FillRate           float64   `json:"fill_rate"`
	TotalRegistrations int       `json:"total_registrations"`
	Pending            int       `json:"pending"`
	Approved           int       `json:"approved"`
	Rejected           int       `json:"rejected"`
	PaymentsCompleted  int       `json:"payments_completed"`
	RevenueCents       *int64    `json:"revenue_cents,omitempty"`
	ApprovalRate       *float64  `json:"approval_rate,omitempty"`
	EmailsSent         int       `json:"emails_sent"`
	EmailsFailed       int       `json:"emails_failed"`
}

// Handler handles demo class analytics.
type Handler struct {
	src Source
}

// NewHandler creates an analytics handler.
func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// GetByDemoClass handles GET /admin/demo-classes/:id/analytics.
func (h *Handler) GetByDemoClass(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation("invalid demo class id"))
		return
	}
	counts, err := h.src.DemoClassCounts(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = c.Error(apperr.NotFound("demo class not found"))
		return
	case err != nil:
		_ = c.Error(apperr.Internal("failed to load analytics", err))
		return
	}
	response.OK(c, Summarize(counts))
}

// Summarize derives rates from raw counters. Rejected registrations still hold their seat.
func Summarize(c *Counts) SummaryResponse {
	out := SummaryResponse{
		DemoClassID:        c.DemoClassID,
		Title:              c.Title,
		Capacity:           c.Capacity,
		SeatsTaken:         c.Registered,
		SeatsLeft:          max(c.Capacity-c.Registered, 0),
		TotalRegistrations: c.Pending + c.Approved + c.Rejected,
		Pending:            c.Pending,
		Approved:           c.Approved,
		Rejected:           c.Rejected,
		PaymentsCompleted:  c.PaymentsCompleted,
		EmailsSent:         c.EmailsSent,
		EmailsFailed:       c.EmailsFailed,
	}
	if c.Capacity > 0 {
		out.FillRate = float64(c.Registered) / float64(c.Capacity)
	}
	if decided := c.Approved + c.Rejected; decided > 0 {
		rate := float64(c.Approved) / float64(decided)
		out.ApprovalRate = &rate
	}
	if c.RevenueCents > 0 {
		out.RevenueCents = &c.RevenueCents
	}
	return out
}
