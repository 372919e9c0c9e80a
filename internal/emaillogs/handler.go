package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/registrations"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/response"
)

// Lister reads delivery history.
type Lister interface {
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.EmailLog, error)
}

// RegistrationGetter loads a registration for resends.
type RegistrationGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.RegistrationView, error)
}

// EmailQueue accepts email jobs.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// ResendRequest is the body for POST /admin/registrations/:id/emails/resend.
type ResendRequest struct {
	EmailType string `json:"email_type" binding:"required,oneof=registration_received registration_approved registration_rejected payment_updated"`
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	logs   Lister
	regs   RegistrationGetter
	emails EmailQueue
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(logs Lister, regs RegistrationGetter, emails EmailQueue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, regs: regs, emails: emails, logger: logger}
}

// ListByRegistration handles GET /admin/registrations/:id/emails.
func (h *Handler) ListByRegistration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation("invalid registration id"))
		return
	}
	logs, err := h.logs.ListByRegistration(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(apperr.Internal("failed to load email logs", err))
		return
	}
	response.OK(c, logs)
}

// Resend handles POST /admin/registrations/:id/emails/resend by enqueuing a fresh job.
func (h *Handler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation("invalid registration id"))
		return
	}
	var body ResendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	// regs returns apperr-typed errors, NotFound included.
	reg, err := h.regs.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	payload := registrations.EmailPayload(body.EmailType, reg)
	if err := h.emails.EnqueueEmail(c.Request.Context(), payload); err != nil {
		_ = c.Error(apperr.Internal("failed to enqueue email", err))
		return
	}
	h.logger.Info("email resend queued", zap.String("registration_id", reg.ID.String()), zap.String("email_type", body.EmailType))
	response.OK(c, gin.H{"message": "resend queued"})
}
