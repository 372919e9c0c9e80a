//go:generate go run go.uber.org/mock/mockgen -source=emitter.go -destination=../mocks/mock_emitter.go -package=mocks
package realtime

import "github.com/google/uuid"

// Event names pushed to clients.
const (
	EventRegistrationApproved  = "registration:approved"
	EventRegistrationRejected  = "registration:rejected"
	EventRegistrationNew       = "registration:new"
	EventRegistrationCancelled = "registration:cancelled"
	EventPaymentUpdated        = "payment:updated"
	EventOrderNew              = "order:new"
	EventOrderConfirmed        = "order:confirmed"
	EventDemoClassUpdated      = "demo-class:updated"
)

// Emitter pushes events to connected clients. Delivery is best effort: a target
// without a live connection simply misses the event.
// Every method panics with ErrNotInitialized when the hub is not running.
type Emitter interface {
	EmitToUser(userID uuid.UUID, event string, payload any)
	EmitToAdmins(event string, payload any)
	EmitToAll(event string, payload any)
}
