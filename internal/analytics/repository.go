package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/pkg/database"
)

var ErrNotFound = errors.New("demo class not found")

// Repository aggregates registration, payment and email outcomes per demo class.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DemoClassCounts returns the raw counters for one demo class.
func (r *Repository) DemoClassCounts(ctx context.Context, id uuid.UUID) (*Counts, error) {
	const q = `SELECT d.id, d.title, d.max_attendees, d.registered_count,
		COUNT(r.id) FILTER (WHERE r.approval_status = 'pending'),
		COUNT(r.id) FILTER (WHERE r.approval_status = 'approved'),
		COUNT(r.id) FILTER (WHERE r.approval_status = 'rejected'),
		COUNT(r.id) FILTER (WHERE r.payment_status = 'completed'),
		(SELECT COALESCE(SUM(o.total_cents), 0) FROM orders o
			WHERE o.item_type = 'demo_class' AND o.item_id = d.id AND o.status = 'completed'),
		(SELECT COUNT(*) FROM email_logs e JOIN registrations er ON er.id = e.registration_id
			WHERE er.demo_class_id = d.id AND e.status = 'sent'),
		(SELECT COUNT(*) FROM email_logs e JOIN registrations er ON er.id = e.registration_id
			WHERE er.demo_class_id = d.id AND e.status = 'failed')
		FROM demo_classes d
		LEFT JOIN registrations r ON r.demo_class_id = d.id
		WHERE d.id = $1
		GROUP BY d.id`
	var c Counts
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.DemoClassID, &c.Title, &c.Capacity, &c.Registered,
		&c.Pending, &c.Approved, &c.Rejected, &c.PaymentsCompleted, &c.RevenueCents, &c.EmailsSent, &c.EmailsFailed)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("demo class analytics: %w", err)
	}
	return &c, nil
}
