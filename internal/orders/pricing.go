package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/learnhub/backend/internal/models"
)

var (
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrCouponInactive   = errors.New("coupon is not active")
	ErrCouponNotStarted = errors.New("coupon is not valid yet")
	ErrCouponExpired    = errors.New("coupon has expired")
	ErrCouponExhausted  = errors.New("coupon usage limit reached")
	ErrCouponMinOrder   = errors.New("order total is below the coupon minimum")
)

// Quote is the price breakdown of one order. All amounts are in minor units.
type Quote struct {
	SubtotalCents int    `json:"subtotal_cents"`
	DiscountCents int    `json:"discount_cents"`
	TotalCents    int    `json:"total_cents"`
	Currency      string `json:"currency"`
	CouponCode    string `json:"coupon_code,omitempty"`
}

// NormalizeCode canonicalises a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckCoupon reports why c cannot be applied to subtotal at now, or nil.
func CheckCoupon(c *models.Coupon, subtotalCents int, now time.Time) error {
	switch {
	case !c.Active:
		return ErrCouponInactive
	case now.Before(c.ValidFrom):
		return ErrCouponNotStarted
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		return ErrCouponExpired
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return ErrCouponExhausted
	case subtotalCents < c.MinOrderCents:
		return ErrCouponMinOrder
	}
	return nil
}

// Discount returns the discount c grants on subtotal. It never exceeds the subtotal.
// Percent discounts round down and respect MaxDiscountCents when set.
func Discount(c *models.Coupon, subtotalCents int) int {
	var d int
	switch c.DiscountType {
	case models.CouponDiscountPercent:
		pct := min(max(c.DiscountValue, 0), 100)
		d = subtotalCents * pct / 100
		if c.MaxDiscountCents > 0 {
			d = min(d, c.MaxDiscountCents)
		}
	case models.CouponDiscountFixed:
		d = max(c.DiscountValue, 0)
	}
	return min(d, subtotalCents)
}

// Price quotes subtotal with an optional coupon.
func Price(subtotalCents int, currency string, c *models.Coupon, now time.Time) (Quote, error) {
	q := Quote{SubtotalCents: subtotalCents, TotalCents: subtotalCents, Currency: currency}
	if c == nil {
		return q, nil
	}
	if err := CheckCoupon(c, subtotalCents, now); err != nil {
		return Quote{}, err
	}
	q.CouponCode = c.Code
	q.DiscountCents = Discount(c, subtotalCents)
	q.TotalCents = subtotalCents - q.DiscountCents
	return q, nil
}
