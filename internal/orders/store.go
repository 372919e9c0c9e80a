package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotPending   = errors.New("order is no longer pending")
	ErrItemNotFound      = errors.New("item not found")
	ErrItemNotForSale    = errors.New("item is not for sale")
	ErrRegistrationOwner = errors.New("registration does not belong to caller or item")
	ErrAlreadyPaid       = errors.New("registration is already paid")
	ErrRegistrationGone  = errors.New("registration for this order no longer exists")
	ErrAlreadyEnrolled   = errors.New("already enrolled in this course")
	ErrCouponCodeTaken   = errors.New("coupon code already exists")
)

// Item is the purchasable side of an order.
type Item struct {
	Type       models.ItemType
	ID         uuid.UUID
	Title      string
	PriceCents int
	Currency   string
	ForSale    bool
}

// RegistrationRef is the subset of a registration an order needs.
type RegistrationRef struct {
	ID            uuid.UUID
	DemoClassID   uuid.UUID
	UserID        *uuid.UUID
	PaymentStatus models.PaymentStatus
}

// Customer is the addressee of order emails.
type Customer struct {
	Name  string
	Email string
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	UserID *uuid.UUID
	Status *models.OrderStatus
	Limit  int
	Offset int
}

func (f OrderFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return 50
	case f.Limit > 200:
		return 200
	}
	return f.Limit
}

func (f OrderFilter) offset() int { return max(f.Offset, 0) }

// Store persists coupons and orders. Confirm and Fail are atomic with their side effects.
type Store interface {
	Item(ctx context.Context, itemType models.ItemType, id uuid.UUID) (*Item, error)
	Registration(ctx context.Context, id uuid.UUID) (*RegistrationRef, error)
	Enrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	Customer(ctx context.Context, userID uuid.UUID) (*Customer, error)

	CouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	ListCoupons(ctx context.Context) ([]models.Coupon, error)

	// CreateOrder inserts o and links its registration, if any.
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	// Confirm completes a pending order, redeems its coupon and activates what it bought.
	Confirm(ctx context.Context, id uuid.UUID, paymentRef string) (*models.Order, error)
	// Fail marks a pending order failed and its registration's payment failed.
	Fail(ctx context.Context, id uuid.UUID) (*models.Order, error)
}
