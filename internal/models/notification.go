package models

import "time"

// Notification is an immutable record created by the dispatcher. Only the
// Seen flag mutates, through the read path.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Link      *string   `db:"link" json:"link,omitempty"`
	Seen      bool      `db:"seen" json:"seen"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter selects notifications for the list endpoint.
type NotificationFilter struct {
	UserID   string
	Unseen   bool
	Page     int
	PageSize int
}
