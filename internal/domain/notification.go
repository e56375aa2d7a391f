package domain

import "time"

// Notification is an in-app message shown to an account.
type Notification struct {
	ID        string
	Email     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
