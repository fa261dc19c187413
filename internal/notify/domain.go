package notify

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Priority orders notifications for the recipient UI.
type Priority string

const (
	// PriorityLow is informational.
	PriorityLow Priority = "low"
	// PriorityMedium is the default.
	PriorityMedium Priority = "medium"
	// PriorityHigh demands prompt attention.
	PriorityHigh Priority = "high"
	// PriorityUrgent is reserved for alert broadcasts.
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalises a raw priority, defaulting to medium.
func ParsePriority(raw string) Priority {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(raw)
	}
	return PriorityMedium
}

var (
	// ErrPersistence indicates a durable write failed. Never swallowed: a
	// notification that cannot be recorded must not be silently dropped.
	ErrPersistence = errors.New("notify: persistence unavailable")
	// ErrUnknownRoom indicates room membership could not be resolved.
	ErrUnknownRoom = errors.New("notify: unknown room")
	// ErrNotFound indicates the notification does not exist for the recipient.
	ErrNotFound = errors.New("notify: not found")
)

// Notification is a durable per-recipient message.
type Notification struct {
	ID        uuid.UUID
	Recipient uuid.UUID
	Type      string
	Title     string
	Message   string
	Priority  Priority
	Read      bool
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Payload carries the caller-supplied fields of a new notification.
type Payload struct {
	Type      string
	Title     string
	Message   string
	Priority  Priority
	ExpiresAt *time.Time
}
