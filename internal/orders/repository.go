package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
)

const orderColumns = `id, user_id, item_type, item_id, item_title, registration_id, COALESCE(coupon_code, ''),
	subtotal_cents, discount_cents, total_cents, currency, status, COALESCE(payment_ref, ''), created_at, updated_at`

const couponColumns = `id, code, discount_type, discount_value, min_order_cents, max_discount_cents, max_uses, used_count,
	active, valid_from, valid_until, created_at, updated_at`

// Repository handles orders and coupons persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates an orders repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Item loads a course or demo class as a purchasable item.
func (r *Repository) Item(ctx context.Context, itemType models.ItemType, id uuid.UUID) (*Item, error) {
	var q string
	switch itemType {
	case models.ItemCourse:
		q = `SELECT title, price_cents, currency, published FROM courses WHERE id = $1`
	case models.ItemDemoClass:
		q = `SELECT title, price_cents, currency, status = 'scheduled' AND price_cents > 0 FROM demo_classes WHERE id = $1`
	default:
		return nil, ErrItemNotFound
	}
	it := Item{Type: itemType, ID: id}
	err := r.pool.QueryRow(ctx, q, id).Scan(&it.Title, &it.PriceCents, &it.Currency, &it.ForSale)
	if database.IsNoRows(err) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// Registration loads the fields an order checks against.
func (r *Repository) Registration(ctx context.Context, id uuid.UUID) (*RegistrationRef, error) {
	var ref RegistrationRef
	err := r.pool.QueryRow(ctx, `SELECT id, demo_class_id, user_id, payment_status FROM registrations WHERE id = $1`, id).
		Scan(&ref.ID, &ref.DemoClassID, &ref.UserID, &ref.PaymentStatus)
	if database.IsNoRows(err) {
		return nil, ErrRegistrationOwner
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &ref, nil
}

// Enrolled reports whether the user holds an active enrollment in the course.
func (r *Repository) Enrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND active)`, userID, courseID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return ok, nil
}

// Customer returns the name and email of a user.
func (r *Repository) Customer(ctx context.Context, userID uuid.UUID) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT full_name, email FROM users WHERE id = $1`, userID).Scan(&c.Name, &c.Email)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// CouponByCode returns the coupon with the given normalized code.
func (r *Repository) CouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if database.IsNoRows(err) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// CreateCoupon inserts c.
func (r *Repository) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	const q = `INSERT INTO coupons (code, discount_type, discount_value, min_order_cents, max_discount_cents, max_uses, active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + couponColumns
	created, err := scanCoupon(r.pool.QueryRow(ctx, q, c.Code, c.DiscountType, c.DiscountValue, c.MinOrderCents, c.MaxDiscountCents,
		c.MaxUses, c.Active, c.ValidFrom, c.ValidUntil))
	if database.IsUniqueViolation(err) {
		return ErrCouponCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	*c = *created
	return nil
}

// ListCoupons returns every coupon, newest first.
func (r *Repository) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	list := []models.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// CreateOrder inserts o and points its registration at it in the same transaction.
func (r *Repository) CreateOrder(ctx context.Context, o *models.Order) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO orders (user_id, item_type, item_id, item_title, registration_id, coupon_code, subtotal_cents, discount_cents, total_cents, currency)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
			RETURNING ` + orderColumns
		created, err := scanOrder(tx.QueryRow(ctx, q, o.UserID, o.ItemType, o.ItemID, o.ItemTitle, o.RegistrationID, o.CouponCode,
			o.SubtotalCents, o.DiscountCents, o.TotalCents, o.Currency))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if o.RegistrationID != nil {
			_, err := tx.Exec(ctx, `UPDATE registrations SET order_id = $2, updated_at = NOW() WHERE id = $1`, *o.RegistrationID, created.ID)
			if err != nil {
				return fmt.Errorf("link registration: %w", err)
			}
		}
		*o = *created
		return nil
	})
}

// GetOrder returns one order.
func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders returns orders newest first.
func (r *Repository) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit(), f.offset())
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	list := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// Confirm completes a pending order. The coupon is redeemed only if it still has uses left
// and a linked registration must still exist; otherwise the whole confirmation rolls back.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID, paymentRef string) (*models.Order, error) {
	var out *models.Order
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if o.CouponCode != "" {
			tag, err := tx.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
				WHERE code = $1 AND active AND (max_uses = 0 OR used_count < max_uses)`, o.CouponCode)
			if err != nil {
				return fmt.Errorf("redeem coupon: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrCouponExhausted
			}
		}
		out, err = scanOrder(tx.QueryRow(ctx, `UPDATE orders SET status = 'completed', payment_ref = NULLIF($2, ''), updated_at = NOW()
			WHERE id = $1 RETURNING `+orderColumns, id, paymentRef))
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}

		switch {
		case o.ItemType == models.ItemCourse:
			_, err = tx.Exec(ctx, `INSERT INTO enrollments (user_id, course_id, order_id) VALUES ($1, $2, $3)
				ON CONFLICT (user_id, course_id) DO UPDATE SET active = TRUE, order_id = EXCLUDED.order_id`, o.UserID, o.ItemID, o.ID)
			if err != nil {
				return fmt.Errorf("activate enrollment: %w", err)
			}
		case o.RegistrationID != nil:
			tag, err := tx.Exec(ctx, `UPDATE registrations SET payment_status = 'completed', order_id = $2, updated_at = NOW() WHERE id = $1`,
				*o.RegistrationID, o.ID)
			if err != nil {
				return fmt.Errorf("mark registration paid: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrRegistrationGone
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Fail marks a pending order failed.
func (r *Repository) Fail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		out, err = scanOrder(tx.QueryRow(ctx, `UPDATE orders SET status = 'failed', updated_at = NOW() WHERE id = $1 RETURNING `+orderColumns, id))
		if err != nil {
			return fmt.Errorf("fail order: %w", err)
		}
		if o.RegistrationID != nil {
			_, err = tx.Exec(ctx, `UPDATE registrations SET payment_status = 'failed', updated_at = NOW()
				WHERE id = $1 AND payment_status <> 'completed'`, *o.RegistrationID)
			if err != nil {
				return fmt.Errorf("mark registration payment failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockPending(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if database.IsNoRows(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if o.Status != models.OrderPending {
		return nil, ErrOrderNotPending
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.ItemType, &o.ItemID, &o.ItemTitle, &o.RegistrationID, &o.CouponCode,
		&o.SubtotalCents, &o.DiscountCents, &o.TotalCents, &o.Currency, &o.Status, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderCents, &c.MaxDiscountCents, &c.MaxUses,
		&c.UsedCount, &c.Active, &c.ValidFrom, &c.ValidUntil, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
