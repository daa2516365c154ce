package models

import "time"

// Council is a panel of lecturers assigned to grade projects.
type Council struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	FacultyID string    `db:"faculty_id" json:"faculty_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CouncilMember registers a lecturer on a council.
type CouncilMember struct {
	ID         string    `db:"id" json:"id"`
	CouncilID  string    `db:"council_id" json:"council_id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	Role       string    `db:"role" json:"role"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CouncilProject assigns a council to grade a project.
type CouncilProject struct {
	ID        string    `db:"id" json:"id"`
	CouncilID string    `db:"council_id" json:"council_id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CouncilGrade is one lecturer's score for a project, unique per
// (council, project, lecturer). Score lies in [0,10].
type CouncilGrade struct {
	ID         string    `db:"id" json:"id"`
	CouncilID  string    `db:"council_id" json:"council_id"`
	ProjectID  string    `db:"project_id" json:"project_id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	Score      float64   `db:"score" json:"score"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CouncilGradeDetail joins a grade with the grading lecturer.
type CouncilGradeDetail struct {
	CouncilGrade
	LecturerName string `db:"lecturer_name" json:"lecturer_name"`
}
