package model

import "time"

// Notification is an informational message for one account, written as a
// side effect of proposal lifecycle events.
type Notification struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// UnreadDisplayLimit is how many unread notifications pages show.
const UnreadDisplayLimit = 5
