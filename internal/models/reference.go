package models

import "time"

// School is a top-level academic unit. Consumed read-only by the workflow core.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Faculty belongs to a school.
type Faculty struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	DeanID    *string   `db:"dean_id" json:"dean_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Department belongs to a faculty.
type Department struct {
	ID        string    `db:"id" json:"id"`
	FacultyID string    `db:"faculty_id" json:"faculty_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Major belongs to a department.
type Major struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
