package models

import (
	"time"

	"github.com/google/uuid"
)

// DemoClassStatus is the lifecycle of a demo class.
type DemoClassStatus string

const (
	DemoClassScheduled DemoClassStatus = "scheduled"
	DemoClassCompleted DemoClassStatus = "completed"
	DemoClassCancelled DemoClassStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s DemoClassStatus) Valid() bool {
	switch s {
	case DemoClassScheduled, DemoClassCompleted, DemoClassCancelled:
		return true
	}
	return false
}

// DemoClass is a trial session students can register for.
// RegisteredCount is maintained only by registration create/cancel.
type DemoClass struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Instructor      string          `json:"instructor"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DurationMinutes int             `json:"duration_minutes"`
	PriceCents      int             `json:"price_cents"`
	Currency        string          `json:"currency"`
	MaxAttendees    int             `json:"max_attendees"`
	RegisteredCount int             `json:"registered_count"`
	Status          DemoClassStatus `json:"status"`
	CoverImageKey   string          `json:"cover_image_key,omitempty"`
	CoverImageURL   string          `json:"cover_image_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsPaid reports whether attending requires a completed payment.
func (d *DemoClass) IsPaid() bool { return d.PriceCents > 0 }

// IsFull reports whether no seats are left.
func (d *DemoClass) IsFull() bool { return d.RegisteredCount >= d.MaxAttendees }

// SeatsLeft returns the number of free seats.
func (d *DemoClass) SeatsLeft() int {
	if d.IsFull() {
		return 0
	}
	return d.MaxAttendees - d.RegisteredCount
}
