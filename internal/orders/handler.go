package orders

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

// QuoteRequest is the body for POST /coupons/validate.
type QuoteRequest struct {
	ItemType   models.ItemType `json:"item_type" binding:"required,oneof=course demo_class"`
	ItemID     string          `json:"item_id" binding:"required,uuid"`
	CouponCode string          `json:"coupon_code" binding:"required,max=40"`
}

// CreateOrderRequest is the body for POST /orders.
type CreateOrderRequest struct {
	ItemType       models.ItemType `json:"item_type" binding:"required,oneof=course demo_class"`
	ItemID         string          `json:"item_id" binding:"required,uuid"`
	CouponCode     string          `json:"coupon_code" binding:"max=40"`
	RegistrationID *string         `json:"registration_id" binding:"omitempty,uuid"`
}

// ConfirmRequest is the optional body for PATCH /admin/orders/:id/confirm.
type ConfirmRequest struct {
	PaymentRef string `json:"payment_ref" binding:"max=120"`
}

// CouponRequest is the body for POST /admin/coupons.
type CouponRequest struct {
	Code             string     `json:"code" binding:"required,min=3,max=40,alphanum"`
	DiscountType     string     `json:"discount_type" binding:"required,oneof=percent fixed"`
	DiscountValue    int        `json:"discount_value" binding:"required,min=1"`
	MinOrderCents    int        `json:"min_order_cents" binding:"min=0"`
	MaxDiscountCents int        `json:"max_discount_cents" binding:"min=0"`
	MaxUses          int        `json:"max_uses" binding:"min=0"`
	Active           *bool      `json:"active"`
	ValidFrom        *time.Time `json:"valid_from"`
	ValidUntil       *time.Time `json:"valid_until"`
}

// Handler handles coupon and order endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an orders handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ValidateCoupon handles POST /coupons/validate.
func (h *Handler) ValidateCoupon(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	q, err := h.svc.Quote(c.Request.Context(), req.ItemType, uuid.MustParse(req.ItemID), req.CouponCode)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, q)
}

// Create handles POST /orders.
func (h *Handler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	p := CreateParams{
		ItemType:   req.ItemType,
		ItemID:     uuid.MustParse(req.ItemID),
		CouponCode: req.CouponCode,
	}
	if req.RegistrationID != nil {
		id := uuid.MustParse(*req.RegistrationID)
		p.RegistrationID = &id
	}
	o, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, o)
}

// Mine handles GET /orders/me.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, list)
}

// List handles GET /admin/orders?status=&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	var f OrderFilter
	if raw := c.Query("status"); raw != "" {
		st := models.OrderStatus(raw)
		switch st {
		case models.OrderPending, models.OrderCompleted, models.OrderFailed:
			f.Status = &st
		default:
			_ = c.Error(apperr.Validation("invalid status", "status: must be one of pending, completed, failed"))
			return
		}
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

// Confirm handles PATCH /admin/orders/:id/confirm.
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ConfirmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperr.Binding(err))
			return
		}
	}
	o, err := h.svc.Confirm(c.Request.Context(), id, req.PaymentRef)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("order confirmed by admin", zap.String("order_id", o.ID.String()), zap.String("admin_id", middleware.UserID(c).String()))
	response.OK(c, o)
}

// Fail handles PATCH /admin/orders/:id/fail.
func (h *Handler) Fail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.svc.Fail(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, o)
}

// CreateCoupon handles POST /admin/coupons.
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}
	cp := &models.Coupon{
		Code:             req.Code,
		DiscountType:     req.DiscountType,
		DiscountValue:    req.DiscountValue,
		MinOrderCents:    req.MinOrderCents,
		MaxDiscountCents: req.MaxDiscountCents,
		MaxUses:          req.MaxUses,
		Active:           req.Active == nil || *req.Active,
		ValidUntil:       req.ValidUntil,
	}
	if req.ValidFrom != nil {
		cp.ValidFrom = *req.ValidFrom
	}
	out, err := h.svc.CreateCoupon(c.Request.Context(), cp)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, out)
}

// ListCoupons handles GET /admin/coupons.
func (h *Handler) ListCoupons(c *gin.Context) {
	list, err := h.svc.ListCoupons(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, list)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperr.Validation("invalid order id"))
		return uuid.Nil, false
	}
	return id, true
}
