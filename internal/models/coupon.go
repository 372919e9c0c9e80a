package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponDiscountType is percent or fixed.
const (
	CouponDiscountPercent = "percent"
	CouponDiscountFixed   = "fixed"
)

// Coupon is a discount code applicable to orders.
type Coupon struct {
	ID               uuid.UUID  `json:"id"`
	Code             string     `json:"code"`
	DiscountType     string     `json:"discount_type"`
	DiscountValue    int        `json:"discount_value"`
	MinOrderCents    int        `json:"min_order_cents"`
	MaxDiscountCents int        `json:"max_discount_cents,omitempty"`
	MaxUses          int        `json:"max_uses"`
	UsedCount        int        `json:"used_count"`
	Active           bool       `json:"active"`
	ValidFrom        time.Time  `json:"valid_from"`
	ValidUntil       *time.Time `json:"valid_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
