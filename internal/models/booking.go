package models

import "time"

// BookingStatus advances through the three-stage defense approval chain.
// REJECTED is terminal at any stage.
type BookingStatus string

const (
	BookingStatusPending               BookingStatus = "PENDING"
	BookingStatusApprovedByLecturer    BookingStatus = "APPROVED_BY_LECTURER"
	BookingStatusApprovedByFacultyDean BookingStatus = "APPROVED_BY_FACULTY_DEAN"
	BookingStatusApprovedByRector      BookingStatus = "APPROVED_BY_RECTOR"
	BookingStatusRejected              BookingStatus = "REJECTED"
)

// Booking is a thesis-defense scheduling request. Soft-deleted rows are
// retained for audit.
type Booking struct {
	ID                     string        `db:"id" json:"id"`
	ProjectID              string        `db:"project_id" json:"project_id"`
	StudentID              string        `db:"student_id" json:"student_id"`
	ScheduledAt            time.Time     `db:"scheduled_at" json:"scheduled_at"`
	Room                   *string       `db:"room" json:"room,omitempty"`
	Note                   string        `db:"note" json:"note"`
	Status                 BookingStatus `db:"status" json:"status"`
	ApprovedByLecturerID   *string       `db:"approved_by_lecturer_id" json:"approved_by_lecturer_id,omitempty"`
	ApprovedByFacultyDeanID *string      `db:"approved_by_faculty_dean_id" json:"approved_by_faculty_dean_id,omitempty"`
	ApprovedByRectorID     *string       `db:"approved_by_rector_id" json:"approved_by_rector_id,omitempty"`
	DeletedAt              *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter selects bookings for list endpoints.
type BookingFilter struct {
	ProjectID      string
	StudentID      string
	Status         BookingStatus
	IncludeDeleted bool
}
