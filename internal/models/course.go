package models

import (
	"time"

	"github.com/google/uuid"
)

// Course is a purchasable course.
type Course struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PriceCents  int       `json:"price_cents"`
	Currency    string    `json:"currency"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrollment grants a user access to a course. Created when an order completes.
type Enrollment struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	CourseID    uuid.UUID `json:"course_id"`
	CourseTitle string    `json:"course_title,omitempty"`
	OrderID     uuid.UUID `json:"order_id"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
