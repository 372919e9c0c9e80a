package democlasses

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/storage"
)

// CreateRequest is the body for POST /admin/demo-classes.
type CreateRequest struct {
	Title           string    `json:"title" binding:"required,max=200"`
	Description     string    `json:"description" binding:"max=5000"`
	Instructor      string    `json:"instructor" binding:"max=120"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
	PriceCents      int       `json:"price_cents" binding:"min=0"`
	Currency        string    `json:"currency" binding:"omitempty,len=3"`
	MaxAttendees    int       `json:"max_attendees" binding:"required,min=1"`
}

// UpdateRequest is the body for PATCH /admin/demo-classes/:id.
type UpdateRequest struct {
	Title           *string                 `json:"title" binding:"omitempty,min=1,max=200"`
	Description     *string                 `json:"description" binding:"omitempty,max=5000"`
	Instructor      *string                 `json:"instructor" binding:"omitempty,max=120"`
	ScheduledAt     *time.Time              `json:"scheduled_at"`
	DurationMinutes *int                    `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
	PriceCents      *int                    `json:"price_cents" binding:"omitempty,min=0"`
	MaxAttendees    *int                    `json:"max_attendees" binding:"omitempty,min=1"`
	Status          *models.DemoClassStatus `json:"status" binding:"omitempty,oneof=scheduled completed cancelled"`
}

// Handler handles demo class HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a demo classes handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /demo-classes?status=&upcoming=1&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if raw := c.Query("status"); raw != "" {
		st := models.DemoClassStatus(raw)
		if !st.Valid() {
			_ = c.Error(apperr.Validation("invalid status", "status: must be one of scheduled, completed, cancelled"))
			return
		}
		f.Status = &st
	}
	f.UpcomingOnly = c.Query("upcoming") == "1" || strings.EqualFold(c.Query("upcoming"), "true")
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /demo-classes/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, d)
}

// Create handles POST /admin/demo-classes.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	d, err := h.svc.Create(c.Request.Context(), &models.DemoClass{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Instructor:      req.Instructor,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: duration,
		PriceCents:      req.PriceCents,
		Currency:        strings.ToUpper(req.Currency),
		MaxAttendees:    req.MaxAttendees,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("demo class created", zap.String("demo_class_id", d.ID.String()))
	response.Created(c, d)
}

// Update handles PATCH /admin/demo-classes/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	d, err := h.svc.Update(c.Request.Context(), id, UpdateParams{
		Title:           req.Title,
		Description:     req.Description,
		Instructor:      req.Instructor,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		MaxAttendees:    req.MaxAttendees,
		Status:          req.Status,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, d)
}

// UploadCover handles PUT /admin/demo-classes/:id/cover with a multipart "cover" file.
func (h *Handler) UploadCover(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxCoverSize+1<<20)
	fh, err := c.FormFile("cover")
	if err != nil {
		_ = c.Error(apperr.Validation("cover file required", "cover: multipart file field is missing or too large"))
		return
	}
	if fh.Size > storage.MaxCoverSize {
		_ = c.Error(apperr.Validation("cover too large", "cover: must be at most 5MB"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(apperr.Internal("failed to open upload", err))
		return
	}
	defer f.Close()

	d, err := h.svc.UploadCover(c.Request.Context(), id, f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, d)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation("invalid demo class id"))
		return uuid.Nil, false
	}
	return id, true
}
