package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/models"
)

var (
	ErrNotFound          = errors.New("registration not found")
	ErrDemoClassNotFound = errors.New("demo class not found")
	ErrClassFull         = errors.New("demo class is full")
	ErrClassNotOpen      = errors.New("demo class is not open for registration")
	ErrDuplicate         = errors.New("an active registration already exists for this demo class")
	ErrAlreadyDecided    = errors.New("registration has already been decided")
	ErrPaymentRequired   = errors.New("payment must be completed before approval")
	ErrNotCancellable    = errors.New("only pending registrations without a payment in progress can be cancelled")
)

// CreateParams describes a new registration. UserID is nil for anonymous sign-ups.
type CreateParams struct {
	DemoClassID uuid.UUID
	UserID      *uuid.UUID
	Name        string
	Email       string
	Phone       string
	Notes       string
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status      *models.ApprovalStatus
	DemoClassID *uuid.UUID
	Limit       int
	Offset      int
}

// Store persists registrations together with the seat counter of their demo class.
// Every method returns only after its write is committed.
type Store interface {
	// CreateWithSeat claims a seat and inserts the registration atomically.
	CreateWithSeat(ctx context.Context, p CreateParams) (*models.RegistrationView, error)
	// Decide moves a pending registration to approved or rejected.
	// Approval of a paid class additionally requires a completed payment.
	Decide(ctx context.Context, id uuid.UUID, to models.ApprovalStatus, adminNotes *string) (*models.RegistrationView, error)
	// Cancel deletes the owner's pending registration and releases its seat.
	Cancel(ctx context.Context, id, userID uuid.UUID) (*models.RegistrationView, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.RegistrationView, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RegistrationView, error)
	List(ctx context.Context, f ListFilter) ([]models.RegistrationView, error)
	ListByUser(ctx context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RegistrationView, error)
}
