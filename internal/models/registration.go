package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the admin decision axis of a registration.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further approval transition exists.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// PaymentStatus is the payment axis, independent of approval.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// InitialPaymentStatus is the payment status a new registration starts with.
func InitialPaymentStatus(priceCents int) PaymentStatus {
	if priceCents == 0 {
		return PaymentCompleted
	}
	return PaymentPending
}

// Registration is a request to attend a demo class. One active registration per user and class.
type Registration struct {
	ID             uuid.UUID      `json:"id"`
	DemoClassID    uuid.UUID      `json:"demo_class_id"`
	UserID         *uuid.UUID     `json:"user_id,omitempty"`
	OrderID        *uuid.UUID     `json:"order_id,omitempty"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	Notes          string         `json:"notes,omitempty"`
	AdminNotes     string         `json:"admin_notes,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RegistrationView is a registration joined with the title of its demo class.
type RegistrationView struct {
	Registration
	DemoClassTitle string    `json:"demo_class_title"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}
