package domain

import "time"

// Notification is a user-visible message recorded by the engine as a
// transition side effect. Delivery and the read lifecycle belong to the
// notification center, not to this service's core.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
