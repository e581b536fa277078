package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/contacts-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConfirmationRequested EventType = "confirmation_requested"
)

// Event is a unit of work handed from the request path to background workers.
type Event struct {
	ID           string
	Type         EventType
	Timestamp    time.Time
	Confirmation domain.ConfirmationMessage
}

// NewConfirmationRequested wraps msg in an event.
func NewConfirmationRequested(msg domain.ConfirmationMessage) Event {
	now := time.Now().UTC()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = now
	}
	return Event{
		ID:           msg.ID,
		Type:         EventConfirmationRequested,
		Timestamp:    now,
		Confirmation: msg,
	}
}
