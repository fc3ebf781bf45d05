package notify

import "time"

// Notification mirrors the notifications table.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	Read      bool
	CreatedAt time.Time
}
