package dto

// SubmitGradeRequest records or revises one lecturer's score for a project.
type SubmitGradeRequest struct {
	CouncilID string   `json:"council_id" validate:"required"`
	ProjectID string   `json:"project_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required"`
	Comment   *string  `json:"comment"`
}

// SubmitGradeResponse reports the grade write and the recomputed average.
type SubmitGradeResponse struct {
	Success      bool     `json:"success"`
	AverageScore *float64 `json:"average_score"`
}
