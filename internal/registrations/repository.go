package registrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
)

const activeUserIndex = "registrations_active_user_uniq"

const viewColumns = `r.id, r.demo_class_id, r.user_id, r.order_id, r.name, r.email, r.phone, r.notes, r.admin_notes,
	r.approval_status, r.payment_status, r.created_at, r.updated_at, d.title, d.scheduled_at`

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWithSeat increments registered_count only while it is below max_attendees,
// then inserts the registration in the same transaction. A duplicate rolls the seat back.
// Registrations for free classes start with payment completed.
func (r *Repository) CreateWithSeat(ctx context.Context, p CreateParams) (*models.RegistrationView, error) {
	var view models.RegistrationView
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const claim = `UPDATE demo_classes
			SET registered_count = registered_count + 1, updated_at = NOW()
			WHERE id = $1 AND status = 'scheduled' AND registered_count < max_attendees
			RETURNING title, scheduled_at, price_cents`
		var priceCents int
		err := tx.QueryRow(ctx, claim, p.DemoClassID).Scan(&view.DemoClassTitle, &view.ScheduledAt, &priceCents)
		if database.IsNoRows(err) {
			return r.whyNoSeat(ctx, tx, p.DemoClassID)
		}
		if err != nil {
			return fmt.Errorf("claim seat: %w", err)
		}

		const insert = `INSERT INTO registrations (demo_class_id, user_id, name, email, phone, notes, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, demo_class_id, user_id, order_id, name, email, phone, notes, admin_notes,
				approval_status, payment_status, created_at, updated_at`
		reg := &view.Registration
		err = tx.QueryRow(ctx, insert, p.DemoClassID, p.UserID, p.Name, p.Email, p.Phone, p.Notes,
			models.InitialPaymentStatus(priceCents)).Scan(
			&reg.ID, &reg.DemoClassID, &reg.UserID, &reg.OrderID, &reg.Name, &reg.Email, &reg.Phone, &reg.Notes,
			&reg.AdminNotes, &reg.ApprovalStatus, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
		)
		if database.IsUniqueViolation(err, activeUserIndex) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *Repository) whyNoSeat(ctx context.Context, tx pgx.Tx, demoClassID uuid.UUID) error {
	var status models.DemoClassStatus
	err := tx.QueryRow(ctx, `SELECT status FROM demo_classes WHERE id = $1`, demoClassID).Scan(&status)
	if database.IsNoRows(err) {
		return ErrDemoClassNotFound
	}
	if err != nil {
		return fmt.Errorf("load demo class: %w", err)
	}
	if status != models.DemoClassScheduled {
		return ErrClassNotOpen
	}
	return ErrClassFull
}

// Decide applies the transition only from pending, so a decided registration is never overwritten.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, to models.ApprovalStatus, adminNotes *string) (*models.RegistrationView, error) {
	const q = `UPDATE registrations r
		SET approval_status = $2, admin_notes = COALESCE($3, r.admin_notes), updated_at = NOW()
		FROM demo_classes d
		WHERE r.id = $1 AND d.id = r.demo_class_id AND r.approval_status = 'pending'
			AND ($2 <> 'approved' OR d.price_cents = 0 OR r.payment_status = 'completed')
		RETURNING ` + viewColumns
	view, err := scanView(r.pool.QueryRow(ctx, q, id, to, adminNotes))
	if database.IsNoRows(err) {
		return nil, r.whyUndecidable(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("decide registration: %w", err)
	}
	return view, nil
}

func (r *Repository) whyUndecidable(ctx context.Context, id uuid.UUID) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.ApprovalStatus.Terminal() {
		return ErrAlreadyDecided
	}
	return ErrPaymentRequired
}

// Cancel removes a pending registration owned by userID and gives its seat back.
// Paid registrations for paid classes stay, as do those with an order awaiting confirmation.
func (r *Repository) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.RegistrationView, error) {
	var view models.RegistrationView
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const del = `DELETE FROM registrations r
			USING demo_classes d
			WHERE r.id = $1 AND r.user_id = $2 AND d.id = r.demo_class_id AND r.approval_status = 'pending'
				AND (d.price_cents = 0 OR r.payment_status <> 'completed')
				AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.id = r.order_id AND o.status = 'pending')
			RETURNING r.id, r.demo_class_id, r.user_id, r.order_id, r.name, r.email, r.phone, r.notes, r.admin_notes,
				r.approval_status, r.payment_status, r.created_at, r.updated_at`
		reg := &view.Registration
		err := tx.QueryRow(ctx, del, id, userID).Scan(
			&reg.ID, &reg.DemoClassID, &reg.UserID, &reg.OrderID, &reg.Name, &reg.Email, &reg.Phone, &reg.Notes,
			&reg.AdminNotes, &reg.ApprovalStatus, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
		)
		if database.IsNoRows(err) {
			var owner *uuid.UUID
			err := tx.QueryRow(ctx, `SELECT user_id FROM registrations WHERE id = $1`, id).Scan(&owner)
			if database.IsNoRows(err) || (err == nil && (owner == nil || *owner != userID)) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("load registration: %w", err)
			}
			return ErrNotCancellable
		}
		if err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}

		const release = `UPDATE demo_classes
			SET registered_count = registered_count - 1, updated_at = NOW()
			WHERE id = $1 AND registered_count > 0
			RETURNING title, scheduled_at`
		err = tx.QueryRow(ctx, release, reg.DemoClassID).Scan(&view.DemoClassTitle, &view.ScheduledAt)
		if err != nil && !database.IsNoRows(err) {
			return fmt.Errorf("release seat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// SetPaymentStatus updates the payment axis. Approval is left untouched.
func (r *Repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.RegistrationView, error) {
	const q = `UPDATE registrations r
		SET payment_status = $2, updated_at = NOW()
		FROM demo_classes d
		WHERE r.id = $1 AND d.id = r.demo_class_id
		RETURNING ` + viewColumns
	view, err := scanView(r.pool.QueryRow(ctx, q, id, status))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	return view, nil
}

// Get returns a registration by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.RegistrationView, error) {
	q := `SELECT ` + viewColumns + ` FROM registrations r JOIN demo_classes d ON d.id = r.demo_class_id WHERE r.id = $1`
	view, err := scanView(r.pool.QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return view, nil
}

// List returns registrations for the admin screen, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.RegistrationView, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("r.approval_status = $%d", len(args)))
	}
	if f.DemoClassID != nil {
		args = append(args, *f.DemoClassID)
		where = append(where, fmt.Sprintf("r.demo_class_id = $%d", len(args)))
	}
	q := `SELECT ` + viewColumns + ` FROM registrations r JOIN demo_classes d ON d.id = r.demo_class_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(f.Offset, 0))
	q += fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return r.query(ctx, q, args...)
}

// ListByUser returns the user's registrations, optionally only those changed after updatedSince.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RegistrationView, error) {
	q := `SELECT ` + viewColumns + ` FROM registrations r JOIN demo_classes d ON d.id = r.demo_class_id
		WHERE r.user_id = $1 AND ($2::timestamptz IS NULL OR r.updated_at > $2)
		ORDER BY r.updated_at DESC`
	return r.query(ctx, q, userID, updatedSince)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.RegistrationView, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()
	list := []models.RegistrationView{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *view)
	}
	return list, rows.Err()
}

func scanView(row pgx.Row) (*models.RegistrationView, error) {
	var v models.RegistrationView
	err := row.Scan(
		&v.ID, &v.DemoClassID, &v.UserID, &v.OrderID, &v.Name, &v.Email, &v.Phone, &v.Notes, &v.AdminNotes,
		&v.ApprovalStatus, &v.PaymentStatus, &v.CreatedAt, &v.UpdatedAt, &v.DemoClassTitle, &v.ScheduledAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
