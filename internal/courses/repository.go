package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
)

var ErrNotFound = errors.New("course not found")

const columns = `id, title, description, price_cents, currency, published, created_at, updated_at`

// Store reads and writes courses and the enrollments orders grant.
type Store interface {
	Create(ctx context.Context, c *models.Course) error
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
	List(ctx context.Context, publishedOnly bool) ([]models.Course, error)
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
}

// Repository handles courses persistence. Enrollments are written by order confirmation only.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a courses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts c and fills its generated fields.
func (r *Repository) Create(ctx context.Context, c *models.Course) error {
	const q = `INSERT INTO courses (title, description, price_cents, currency, published)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + columns
	if err := scan(r.pool.QueryRow(ctx, q, c.Title, c.Description, c.PriceCents, c.Currency, c.Published), c); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// Get returns one course.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var c models.Course
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM courses WHERE id = $1`, id), &c)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

// List returns courses, newest first.
func (r *Repository) List(ctx context.Context, publishedOnly bool) ([]models.Course, error) {
	q := `SELECT ` + columns + ` FROM courses`
	if publishedOnly {
		q += ` WHERE published`
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	list := []models.Course{}
	for rows.Next() {
		var c models.Course
		if err := scan(rows, &c); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListEnrollments returns the active enrollments of a user with course titles.
func (r *Repository) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	const q = `SELECT e.id, e.user_id, e.course_id, c.title, e.order_id, e.active, e.created_at
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1 AND e.active
		ORDER BY e.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	list := []models.Enrollment{}
	for rows.Next() {
		var e models.Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.CourseTitle, &e.OrderID, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scan(row pgx.Row, c *models.Course) error {
	return row.Scan(&c.ID, &c.Title, &c.Description, &c.PriceCents, &c.Currency, &c.Published, &c.CreatedAt, &c.UpdatedAt)
}
