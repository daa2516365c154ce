package dto

// SubmitMilestoneRequest uploads a deliverable for a project milestone.
type SubmitMilestoneRequest struct {
	FileURL string `json:"file_url" validate:"required,url"`
	Note    string `json:"note"`
}
