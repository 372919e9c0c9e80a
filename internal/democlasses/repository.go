package democlasses

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

const capacityConstraint = "demo_classes_capacity"

const columns = `id, title, description, instructor, scheduled_at, duration_minutes, price_cents, currency,
	max_attendees, registered_count, status, COALESCE(cover_image_key, ''), created_at, updated_at`

// Repository handles demo_classes persistence. registered_count is never written here.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a demo classes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts d and fills its generated fields.
func (r *Repository) Create(ctx context.Context, d *models.DemoClass) error {
	const q = `INSERT INTO demo_classes (title, description, instructor, scheduled_at, duration_minutes, price_cents, currency, max_attendees)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + columns
	row := r.pool.QueryRow(ctx, q, d.Title, d.Description, d.Instructor, d.ScheduledAt, d.DurationMinutes, d.PriceCents, d.Currency, d.MaxAttendees)
	if err := scan(row, d); err != nil {
		return fmt.Errorf("insert demo class: %w", err)
	}
	return nil
}

// Get returns one demo class.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.DemoClass, error) {
	var d models.DemoClass
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM demo_classes WHERE id = $1`, id), &d)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get demo class: %w", err)
	}
	return &d, nil
}

// List returns demo classes ordered by schedule.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.DemoClass, error) {
	var where []string
	var args []any
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.UpcomingOnly {
		args = append(args, time.Now())
		where = append(where, fmt.Sprintf("scheduled_at >= $%d", len(args)))
	}
	q := `SELECT ` + columns + ` FROM demo_classes`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit(), f.Offset)
	q += fmt.Sprintf(" ORDER BY scheduled_at ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list demo classes: %w", err)
	}
	defer rows.Close()
	list := []models.DemoClass{}
	for rows.Next() {
		var d models.DemoClass
		if err := scan(rows, &d); err != nil {
			return nil, fmt.Errorf("scan demo class: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// Update applies the non-nil fields of p.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.DemoClass, error) {
	const q = `UPDATE demo_classes SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			instructor = COALESCE($4, instructor),
			scheduled_at = COALESCE($5, scheduled_at),
			duration_minutes = COALESCE($6, duration_minutes),
			price_cents = COALESCE($7, price_cents),
			max_attendees = COALESCE($8, max_attendees),
			status = COALESCE($9, status),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + columns
	var d models.DemoClass
	err := scan(r.pool.QueryRow(ctx, q, id, p.Title, p.Description, p.Instructor, p.ScheduledAt, p.DurationMinutes,
		p.PriceCents, p.MaxAttendees, p.Status), &d)
	switch {
	case database.IsNoRows(err):
		return nil, ErrNotFound
	case database.IsCheckViolation(err, capacityConstraint):
		return nil, ErrCapacityBelowCount
	case err != nil:
		return nil, fmt.Errorf("update demo class: %w", err)
	}
	return &d, nil
}

// SetCover stores the new cover key and returns the previous one.
func (r *Repository) SetCover(ctx context.Context, id uuid.UUID, key string) (*models.DemoClass, string, error) {
	var d models.DemoClass
	var oldKey string
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT COALESCE(cover_image_key, '') FROM demo_classes WHERE id = $1 FOR UPDATE`, id).Scan(&oldKey)
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock demo class: %w", err)
		}
		const q = `UPDATE demo_classes SET cover_image_key = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + columns
		if err := scan(tx.QueryRow(ctx, q, id, key), &d); err != nil {
			return fmt.Errorf("set cover: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &d, oldKey, nil
}

func scan(row pgx.Row, d *models.DemoClass) error {
	return row.Scan(&d.ID, &d.Title, &d.Description, &d.Instructor, &d.ScheduledAt, &d.DurationMinutes, &d.PriceCents,
		&d.Currency, &d.MaxAttendees, &d.RegisteredCount, &d.Status, &d.CoverImageKey, &d.CreatedAt, &d.UpdatedAt)
}
