package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
)

const logColumns = `id, registration_id, order_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at`

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records one delivery attempt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (registration_id, order_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, el.RegistrationID, el.OrderID, el.EmailType, el.RecipientEmail, el.Subject, el.Status, el.SentAt, el.ErrorMessage).
		Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListByRegistration returns the logs of one registration, newest first.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.EmailLog, error) {
	return r.list(ctx, `SELECT `+logColumns+` FROM email_logs WHERE registration_id = $1 ORDER BY created_at DESC`, registrationID)
}

// ListByOrder returns the logs of one order, newest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.EmailLog, error) {
	return r.list(ctx, `SELECT `+logColumns+` FROM email_logs WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query email logs: %w", err)
	}
	defer rows.Close()
	list := []models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.RegistrationID, &el.OrderID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
