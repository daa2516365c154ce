package models

import "time"

// Term models a research term that owns a start/end window and a set of
// milestone templates copied into projects created under it.
type Term struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TermMilestone is a read-only milestone template owned by a term.
type TermMilestone struct {
	ID          string    `db:"id" json:"id"`
	TermID      string    `db:"term_id" json:"term_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	OrderIndex  int       `db:"order_index" json:"order_index"`
	IsRequired  bool      `db:"is_required" json:"is_required"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
