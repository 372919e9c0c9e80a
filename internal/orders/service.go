package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/realtime"
	"github.com/learnhub/backend/internal/registrations"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/queue"
)

// freePaymentRef marks orders confirmed automatically because nothing was owed.
const freePaymentRef = "free"

// EmailQueue accepts transactional email jobs.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// CreateParams describes a new order.
type CreateParams struct {
	ItemType       models.ItemType
	ItemID         uuid.UUID
	CouponCode     string
	RegistrationID *uuid.UUID
}

// OrderPayload is pushed on order:new and order:confirmed.
type OrderPayload struct {
	OrderID    uuid.UUID          `json:"orderId"`
	UserID     uuid.UUID          `json:"userId"`
	ItemType   models.ItemType    `json:"itemType"`
	ItemID     uuid.UUID          `json:"itemId"`
	ItemTitle  string             `json:"itemTitle"`
	TotalCents int                `json:"totalCents"`
	Currency   string             `json:"currency"`
	Status     models.OrderStatus `json:"status"`
}

// Service prices, records and settles orders.
type Service struct {
	store   Store
	emitter realtime.Emitter
	emails  EmailQueue
	events  broker.Publisher
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates an orders service. emails and events may be nil.
func NewService(store Store, emitter realtime.Emitter, emails EmailQueue, events broker.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = broker.Noop{}
	}
	return &Service{store: store, emitter: emitter, emails: emails, events: events, now: time.Now, logger: logger}
}

// Quote prices an item with an optional coupon without creating anything.
func (s *Service) Quote(ctx context.Context, itemType models.ItemType, itemID uuid.UUID, couponCode string) (*Quote, error) {
	item, err := s.store.Item(ctx, itemType, itemID)
	if err != nil {
		return nil, mapErr(err)
	}
	if !item.ForSale {
		return nil, mapErr(ErrItemNotForSale)
	}
	q, err := s.price(ctx, item, couponCode)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Service) price(ctx context.Context, item *Item, couponCode string) (Quote, error) {
	var c *models.Coupon
	if code := NormalizeCode(couponCode); code != "" {
		var err error
		if c, err = s.store.CouponByCode(ctx, code); err != nil {
			return Quote{}, mapErr(err)
		}
	}
	q, err := Price(item.PriceCents, item.Currency, c, s.now())
	if err != nil {
		return Quote{}, mapErr(err)
	}
	return q, nil
}

// Create records a pending order for userID. Orders that owe nothing are confirmed at once.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, p CreateParams) (*models.Order, error) {
	item, err := s.store.Item(ctx, p.ItemType, p.ItemID)
	if err != nil {
		return nil, mapErr(err)
	}
	if !item.ForSale {
		return nil, mapErr(ErrItemNotForSale)
	}
	if err := s.checkBuyer(ctx, userID, item, p.RegistrationID); err != nil {
		return nil, err
	}
	q, err := s.price(ctx, item, p.CouponCode)
	if err != nil {
		return nil, err
	}

	o := &models.Order{
		UserID:        userID,
		ItemType:      item.Type,
		ItemID:        item.ID,
		ItemTitle:     item.Title,
		CouponCode:    q.CouponCode,
		SubtotalCents: q.SubtotalCents,
		DiscountCents: q.DiscountCents,
		TotalCents:    q.TotalCents,
		Currency:      q.Currency,
	}
	if item.Type == models.ItemDemoClass {
		o.RegistrationID = p.RegistrationID
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, mapErr(err)
	}
	s.logger.Info("order created", zap.String("order_id", o.ID.String()), zap.Int("total_cents", o.TotalCents))
	s.emitter.EmitToAdmins(realtime.EventOrderNew, payloadOf(o))

	if o.TotalCents == 0 {
		return s.Confirm(ctx, o.ID, freePaymentRef)
	}
	return o, nil
}

func (s *Service) checkBuyer(ctx context.Context, userID uuid.UUID, item *Item, registrationID *uuid.UUID) error {
	switch item.Type {
	case models.ItemCourse:
		enrolled, err := s.store.Enrolled(ctx, userID, item.ID)
		if err != nil {
			return mapErr(err)
		}
		if enrolled {
			return mapErr(ErrAlreadyEnrolled)
		}
	case models.ItemDemoClass:
		if registrationID == nil {
			return apperr.Validation("registration_id is required for demo class orders", "registration_id: required")
		}
		ref, err := s.store.Registration(ctx, *registrationID)
		if err != nil {
			return mapErr(err)
		}
		if ref.UserID == nil || *ref.UserID != userID || ref.DemoClassID != item.ID {
			return mapErr(ErrRegistrationOwner)
		}
		if ref.PaymentStatus == models.PaymentCompleted {
			return mapErr(ErrAlreadyPaid)
		}
	}
	return nil
}

// Confirm settles a pending order after an operator verified payment.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, paymentRef string) (*models.Order, error) {
	o, err := s.store.Confirm(ctx, id, paymentRef)
	if err != nil {
		return nil, mapErr(err)
	}
	s.logger.Info("order confirmed", zap.String("order_id", o.ID.String()), zap.String("payment_ref", paymentRef))
	s.emitter.EmitToUser(o.UserID, realtime.EventOrderConfirmed, payloadOf(o))
	s.notifyRegistration(o, models.PaymentCompleted)
	s.enqueueConfirmation(ctx, o)
	if err := s.events.Publish(ctx, broker.OrderConfirmed, payloadOf(o)); err != nil {
		s.logger.Warn("publish domain event failed", zap.String("routing_key", broker.OrderConfirmed), zap.Error(err))
	}
	return o, nil
}

// Fail marks a pending order failed.
func (s *Service) Fail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := s.store.Fail(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	s.logger.Info("order failed", zap.String("order_id", o.ID.String()))
	s.notifyRegistration(o, models.PaymentFailed)
	return o, nil
}

// ListMine returns the caller's orders.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	list, err := s.store.ListOrders(ctx, OrderFilter{UserID: &userID})
	if err != nil {
		return nil, mapErr(err)
	}
	return list, nil
}

// List returns orders for admins.
func (s *Service) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	list, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, mapErr(err)
	}
	return list, nil
}

// CreateCoupon validates and stores a coupon.
func (s *Service) CreateCoupon(ctx context.Context, c *models.Coupon) (*models.Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if c.DiscountType == models.CouponDiscountPercent && c.DiscountValue > 100 {
		return nil, apperr.Validation("invalid discount", "discount_value: percent discounts must be at most 100")
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = s.now()
	}
	if c.ValidUntil != nil && !c.ValidUntil.After(c.ValidFrom) {
		return nil, apperr.Validation("invalid validity window", "valid_until: must be after valid_from")
	}
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

// ListCoupons returns every coupon.
func (s *Service) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	list, err := s.store.ListCoupons(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return list, nil
}

func (s *Service) notifyRegistration(o *models.Order, status models.PaymentStatus) {
	if o.RegistrationID == nil {
		return
	}
	s.emitter.EmitToUser(o.UserID, realtime.EventPaymentUpdated, registrations.PaymentPayload{
		RegistrationID: *o.RegistrationID,
		DemoClassID:    o.ItemID,
		DemoClassTitle: o.ItemTitle,
		PaymentStatus:  status,
	})
}

func (s *Service) enqueueConfirmation(ctx context.Context, o *models.Order) {
	if s.emails == nil {
		return
	}
	cust, err := s.store.Customer(ctx, o.UserID)
	if err != nil {
		s.logger.Warn("load customer for email failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}
	id := o.ID
	payload := queue.EmailPayload{
		EmailType:      models.EmailTypeOrderConfirmed,
		OrderID:        &id,
		RegistrationID: o.RegistrationID,
		RecipientEmail: cust.Email,
		RecipientName:  cust.Name,
		Data: map[string]string{
			"item_title":  o.ItemTitle,
			"total":       FormatAmount(o.TotalCents, o.Currency),
			"coupon_code": o.CouponCode,
		},
	}
	if err := s.emails.EnqueueEmail(ctx, payload); err != nil {
		s.logger.Warn("enqueue email failed", zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}

// FormatAmount renders minor units as "INR 499.00".
func FormatAmount(cents int, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

func payloadOf(o *models.Order) OrderPayload {
	return OrderPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ItemType:   o.ItemType,
		ItemID:     o.ItemID,
		ItemTitle:  o.ItemTitle,
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
		Status:     o.Status,
	}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrItemNotFound), errors.Is(err, ErrCouponNotFound):
		return apperr.NotFound(err.Error()).Wrap(err)
	case errors.Is(err, ErrCouponInactive), errors.Is(err, ErrCouponNotStarted), errors.Is(err, ErrCouponExpired),
		errors.Is(err, ErrCouponMinOrder), errors.Is(err, ErrRegistrationOwner):
		return apperr.Validation(err.Error()).Wrap(err)
	case errors.Is(err, ErrOrderNotPending), errors.Is(err, ErrItemNotForSale), errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrCouponExhausted), errors.Is(err, ErrCouponCodeTaken),
		errors.Is(err, ErrRegistrationGone):
		return apperr.Conflict(err.Error()).Wrap(err)
	default:
		return apperr.Internal("order store failure", err)
	}
}
