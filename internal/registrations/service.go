package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/realtime"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/queue"
)

// EmailQueue accepts transactional email jobs.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// DecisionPayload is pushed to the owner on approve and reject.
type DecisionPayload struct {
	RegistrationID uuid.UUID             `json:"registrationId"`
	DemoClassID    uuid.UUID             `json:"demoClassId"`
	DemoClassTitle string                `json:"demoClassTitle"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus"`
}

// SummaryPayload is pushed to admins for new and cancelled registrations.
type SummaryPayload struct {
	RegistrationID uuid.UUID  `json:"registrationId"`
	DemoClassID    uuid.UUID  `json:"demoClassId"`
	DemoClassTitle string     `json:"demoClassTitle"`
	UserID         *uuid.UUID `json:"userId,omitempty"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// PaymentPayload is pushed to the owner when the payment axis changes.
type PaymentPayload struct {
	RegistrationID uuid.UUID            `json:"registrationId"`
	DemoClassID    uuid.UUID            `json:"demoClassId"`
	DemoClassTitle string               `json:"demoClassTitle"`
	PaymentStatus  models.PaymentStatus `json:"paymentStatus"`
}

// Service runs the registration state machine. State is persisted before any event is emitted.
type Service struct {
	store   Store
	emitter realtime.Emitter
	emails  EmailQueue
	events  broker.Publisher
	logger  *zap.Logger
}

// NewService creates a registration service. emails and events may be nil.
func NewService(store Store, emitter realtime.Emitter, emails EmailQueue, events broker.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = broker.Noop{}
	}
	return &Service{store: store, emitter: emitter, emails: emails, events: events, logger: logger}
}

// Create claims a seat and records the registration, then notifies admins.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.RegistrationView, error) {
	reg, err := s.store.CreateWithSeat(ctx, p)
	if err != nil {
		return nil, mapErr(err)
	}
	s.emitter.EmitToAdmins(realtime.EventRegistrationNew, summary(reg))
	s.enqueueEmail(ctx, models.EmailTypeRegistrationReceived, reg)
	s.publish(ctx, broker.RegistrationCreated, summary(reg))
	return reg, nil
}

// Approve moves a pending registration to approved and tells its owner.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, adminNotes *string) (*models.RegistrationView, error) {
	return s.decide(ctx, id, models.ApprovalApproved, adminNotes)
}

// Reject moves a pending registration to rejected and tells its owner.
// The seat stays counted; only cancellation releases it.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, adminNotes *string) (*models.RegistrationView, error) {
	return s.decide(ctx, id, models.ApprovalRejected, adminNotes)
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, to models.ApprovalStatus, adminNotes *string) (*models.RegistrationView, error) {
	reg, err := s.store.Decide(ctx, id, to, adminNotes)
	if err != nil {
		return nil, mapErr(err)
	}

	event, emailType, routingKey := realtime.EventRegistrationApproved, models.EmailTypeRegistrationApproved, broker.RegistrationApproved
	if to == models.ApprovalRejected {
		event, emailType, routingKey = realtime.EventRegistrationRejected, models.EmailTypeRegistrationRejected, broker.RegistrationRejected
	}
	payload := DecisionPayload{
		RegistrationID: reg.ID,
		DemoClassID:    reg.DemoClassID,
		DemoClassTitle: reg.DemoClassTitle,
		ApprovalStatus: reg.ApprovalStatus,
	}
	if reg.UserID != nil {
		s.emitter.EmitToUser(*reg.UserID, event, payload)
	}
	s.enqueueEmail(ctx, emailType, reg)
	s.publish(ctx, routingKey, payload)
	return reg, nil
}

// Cancel lets an owner withdraw a pending registration, releasing its seat.
func (s *Service) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.RegistrationView, error) {
	reg, err := s.store.Cancel(ctx, id, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	s.emitter.EmitToAdmins(realtime.EventRegistrationCancelled, summary(reg))
	return reg, nil
}

// SetPaymentStatus updates the payment axis and tells the owner.
func (s *Service) SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.RegistrationView, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid payment status", "paymentStatus: must be one of pending, completed, failed")
	}
	reg, err := s.store.SetPaymentStatus(ctx, id, status)
	if err != nil {
		return nil, mapErr(err)
	}
	if reg.UserID != nil {
		s.emitter.EmitToUser(*reg.UserID, realtime.EventPaymentUpdated, PaymentPayload{
			RegistrationID: reg.ID,
			DemoClassID:    reg.DemoClassID,
			DemoClassTitle: reg.DemoClassTitle,
			PaymentStatus:  reg.PaymentStatus,
		})
	}
	s.enqueueEmail(ctx, models.EmailTypePaymentUpdated, reg)
	return reg, nil
}

// Get returns one registration.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.RegistrationView, error) {
	reg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return reg, nil
}

// List returns registrations for admins.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.RegistrationView, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, mapErr(err)
	}
	return list, nil
}

// ListMine returns the caller's registrations. It is the polling fallback for missed pushes.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RegistrationView, error) {
	list, err := s.store.ListByUser(ctx, userID, updatedSince)
	if err != nil {
		return nil, mapErr(err)
	}
	return list, nil
}

func (s *Service) enqueueEmail(ctx context.Context, emailType string, reg *models.RegistrationView) {
	if s.emails == nil || reg.Email == "" {
		return
	}
	if err := s.emails.EnqueueEmail(ctx, EmailPayload(emailType, reg)); err != nil {
		s.logger.Warn("enqueue email failed", zap.String("email_type", emailType), zap.String("registration_id", reg.ID.String()), zap.Error(err))
	}
}

// EmailPayload builds the email job for reg. Template keys match pkg/mailer/templates.
func EmailPayload(emailType string, reg *models.RegistrationView) queue.EmailPayload {
	id := reg.ID
	return queue.EmailPayload{
		EmailType:      emailType,
		RegistrationID: &id,
		RecipientEmail: reg.Email,
		RecipientName:  reg.Name,
		Data: map[string]string{
			"demo_class_title": reg.DemoClassTitle,
			"scheduled_at":     reg.ScheduledAt.Format(time.RFC1123),
			"approval_status":  string(reg.ApprovalStatus),
			"payment_status":   string(reg.PaymentStatus),
			"admin_notes":      reg.AdminNotes,
		},
	}
}

func (s *Service) publish(ctx context.Context, routingKey string, data any) {
	if err := s.events.Publish(ctx, routingKey, data); err != nil {
		s.logger.Warn("publish domain event failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

func summary(reg *models.RegistrationView) SummaryPayload {
	return SummaryPayload{
		RegistrationID: reg.ID,
		DemoClassID:    reg.DemoClassID,
		DemoClassTitle: reg.DemoClassTitle,
		UserID:         reg.UserID,
		Name:           reg.Name,
		Email:          reg.Email,
		CreatedAt:      reg.CreatedAt,
	}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDemoClassNotFound):
		return apperr.NotFound(err.Error()).Wrap(err)
	case errors.Is(err, ErrClassFull), errors.Is(err, ErrClassNotOpen), errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrPaymentRequired), errors.Is(err, ErrNotCancellable):
		return apperr.Conflict(err.Error()).Wrap(err)
	default:
		return apperr.Internal("registration store failure", err)
	}
}
