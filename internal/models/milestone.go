package models

import "time"

// MilestoneSubmission is one uploaded deliverable for a project milestone.
// Version increases monotonically per (milestone, user).
type MilestoneSubmission struct {
	ID          string    `db:"id" json:"id"`
	MilestoneID string    `db:"milestone_id" json:"milestone_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Version     int       `db:"version" json:"version"`
	FileURL     string    `db:"file_url" json:"file_url"`
	Note        string    `db:"note" json:"note"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}
