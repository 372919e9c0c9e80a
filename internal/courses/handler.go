package courses

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

// CreateRequest is the body for POST /admin/courses.
type CreateRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=10000"`
	PriceCents  int    `json:"price_cents" binding:"min=0"`
	Currency    string `json:"currency" binding:"omitempty,len=3"`
	Published   *bool  `json:"published"`
}

// Handler handles course catalogue and enrollment endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a courses handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /courses. Admins also see unpublished courses.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), !isAdmin(c))
	if err != nil {
		_ = c.Error(apperr.Internal("failed to list courses", err))
		return
	}
	response.OK(c, list)
}

// Get handles GET /courses/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation("invalid course id"))
		return
	}
	course, err := h.store.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = c.Error(apperr.NotFound("course not found"))
		return
	case err != nil:
		_ = c.Error(apperr.Internal("failed to load course", err))
		return
	}
	if !course.Published && !isAdmin(c) {
		_ = c.Error(apperr.NotFound("course not found"))
		return
	}
	response.OK(c, course)
}

// Create handles POST /admin/courses.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	course := &models.Course{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    strings.ToUpper(req.Currency),
		Published:   req.Published == nil || *req.Published,
	}
	if course.Currency == "" {
		course.Currency = "INR"
	}
	if err := h.store.Create(c.Request.Context(), course); err != nil {
		_ = c.Error(apperr.Internal("failed to create course", err))
		return
	}
	h.logger.Info("course created", zap.String("course_id", course.ID.String()))
	response.Created(c, course)
}

// MyEnrollments handles GET /enrollments/me.
func (h *Handler) MyEnrollments(c *gin.Context) {
	list, err := h.store.ListEnrollments(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(apperr.Internal("failed to list enrollments", err))
		return
	}
	response.OK(c, list)
}

func isAdmin(c *gin.Context) bool {
	return middleware.Role(c) == string(models.RoleAdmin)
}
