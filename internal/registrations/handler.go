package registrations

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

// RegisterRequest is the body for POST /demo-classes/:id/register.
type RegisterRequest struct {
	Name  string `json:"name" binding:"required,max=120"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required,min=7,max=20"`
	Notes string `json:"notes" binding:"max=1000"`
}

// DecisionRequest is the optional body for approve and reject.
type DecisionRequest struct {
	AdminNotes *string `json:"adminNotes" binding:"omitempty,max=2000"`
}

// PaymentRequest is the body for PATCH /admin/registrations/:id/payment.
type PaymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" binding:"required,oneof=pending completed failed"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /demo-classes/:id/register. Signed-in callers own the registration.
func (h *Handler) Register(c *gin.Context) {
	demoClassID, ok := pathID(c, "invalid demo class id")
	if !ok {
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}

	p := CreateParams{
		DemoClassID: demoClassID,
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       strings.TrimSpace(req.Phone),
		Notes:       req.Notes,
	}
	if uid := middleware.UserID(c); uid != uuid.Nil {
		p.UserID = &uid
	}
	reg, err := h.svc.Create(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("registration created", zap.String("registration_id", reg.ID.String()), zap.String("demo_class_id", demoClassID.String()))
	response.Created(c, reg)
}

// Mine handles GET /registrations/me?updated_since=RFC3339.
func (h *Handler) Mine(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("updated_since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = c.Error(apperr.Validation("invalid updated_since", "updated_since: must be RFC3339"))
			return
		}
		since = &t
	}
	list, err := h.svc.ListMine(c.Request.Context(), middleware.UserID(c), since)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, gin.H{"registrations": list, "server_time": time.Now().UTC()})
}

// Cancel handles DELETE /registrations/:id.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "invalid registration id")
	if !ok {
		return
	}
	if _, err := h.svc.Cancel(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	response.NoContent(c)
}

// List handles GET /admin/registrations?status=&demo_class_id=&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if raw := c.Query("status"); raw != "" {
		st := models.ApprovalStatus(raw)
		if !st.Valid() {
			_ = c.Error(apperr.Validation("invalid status", "status: must be one of pending, approved, rejected"))
			return
		}
		f.Status = &st
	}
	if raw := c.Query("demo_class_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = c.Error(apperr.Validation("invalid demo_class_id"))
			return
		}
		f.DemoClassID = &id
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid registration id")
	if !ok {
		return
	}
	reg, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, reg)
}

// Approve handles PATCH /admin/registrations/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, h.svc.Approve)
}

// Reject handles PATCH /admin/registrations/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, h.svc.Reject)
}

type decision func(ctx context.Context, id uuid.UUID, adminNotes *string) (*models.RegistrationView, error)

func (h *Handler) decide(c *gin.Context, fn decision) {
	id, ok := pathID(c, "invalid registration id")
	if !ok {
		return
	}
	var req DecisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperr.Binding(err))
			return
		}
	}
	reg, err := fn(c.Request.Context(), id, req.AdminNotes)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("registration decided",
		zap.String("registration_id", reg.ID.String()),
		zap.String("approval_status", string(reg.ApprovalStatus)),
		zap.String("admin_id", middleware.UserID(c).String()),
	)
	response.OK(c, reg)
}

// UpdatePayment handles PATCH /admin/registrations/:id/payment.
func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := pathID(c, "invalid registration id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	reg, err := h.svc.SetPaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, reg)
}

func pathID(c *gin.Context, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation(msg))
		return uuid.Nil, false
	}
	return id, true
}
