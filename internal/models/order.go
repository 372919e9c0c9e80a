package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemType is what an order buys.
type ItemType string

const (
	ItemCourse    ItemType = "course"
	ItemDemoClass ItemType = "demo_class"
)

// OrderStatus mirrors the offline payment lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// Order is a purchase confirmed manually by an operator.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	ItemType       ItemType    `json:"item_type"`
	ItemID         uuid.UUID   `json:"item_id"`
	ItemTitle      string      `json:"item_title"`
	RegistrationID *uuid.UUID  `json:"registration_id,omitempty"`
	CouponCode     string      `json:"coupon_code,omitempty"`
	SubtotalCents  int         `json:"subtotal_cents"`
	DiscountCents  int         `json:"discount_cents"`
	TotalCents     int         `json:"total_cents"`
	Currency       string      `json:"currency"`
	Status         OrderStatus `json:"status"`
	PaymentRef     string      `json:"payment_ref,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
