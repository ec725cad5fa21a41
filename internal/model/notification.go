package model

import "time"

// NotificationID identifies a message in a user's outbox
type NotificationID string

// Notification is a message written to a user's outbox
type Notification struct {
	ID        NotificationID `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	CreatedAt time.Time      `json:"createdAt"`

	// Read and ReadAt are set by the game client when the user opens the message
	Read   bool      `json:"read"`
	ReadAt time.Time `json:"readAt,omitzero"`
}

// Expired reports whether a read notification was read before the cutoff
func (n *Notification) Expired(cutoff time.Time) bool {
	return n.Read && !n.ReadAt.IsZero() && n.ReadAt.Before(cutoff)
}
