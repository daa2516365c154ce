package dto

import "time"

// CreateBookingRequest schedules a defense session for a project.
type CreateBookingRequest struct {
	ProjectID   string    `json:"project_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Room        *string   `json:"room"`
	Note        string    `json:"note"`
}

// UpdateBookingRequest patches a pending booking.
type UpdateBookingRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	Room        *string    `json:"room"`
	Note        *string    `json:"note"`
}

// ApproveBookingRequest carries the reviewer decision for one stage.
type ApproveBookingRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}
