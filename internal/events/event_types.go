package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginRejected  EventType = "login_rejected"
	EventAdminSeeded    EventType = "admin_seeded"
	EventUserCreated    EventType = "user_created"
	EventUserUpdated    EventType = "user_updated"
	EventUserDeleted    EventType = "user_deleted"
)

// Event represents an auth event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// LoginRejectedPayload payload. Reason is internal and never sent to clients.
type LoginRejectedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// AdminSeededPayload payload.
type AdminSeededPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserChangedPayload describes a change an actor made to a principal.
// Fields lists what was written; password changes appear as "password".
type UserChangedPayload struct {
	UserID  string   `json:"user_id"`
	ActorID string   `json:"actor_id"`
	Fields  []string `json:"fields,omitempty"`
}
