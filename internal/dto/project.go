package dto

// ProjectMemberInput names a student and their role within the team.
type ProjectMemberInput struct {
	StudentID  string `json:"student_id" validate:"required"`
	RoleInTeam string `json:"role_in_team" validate:"required"`
}

// CreateProjectRequest is the payload for registering a project.
type CreateProjectRequest struct {
	Code         string               `json:"code" validate:"required"`
	Title        string               `json:"title" validate:"required"`
	Description  string               `json:"description"`
	Level        string               `json:"level" validate:"required"`
	SupervisorID string               `json:"supervisor_id" validate:"required"`
	TermID       string               `json:"term_id" validate:"required"`
	FacultyID    string               `json:"faculty_id" validate:"required"`
	DepartmentID string               `json:"department_id" validate:"required"`
	MajorID      string               `json:"major_id" validate:"required"`
	Members      []ProjectMemberInput `json:"members" validate:"required,min=1,dive"`
}

// UpdateProjectRequest patches project fields. Nil pointers leave the field
// untouched; a non-nil Members slice replaces the member list through the
// diff engine.
type UpdateProjectRequest struct {
	Code         *string              `json:"code"`
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Level        *string              `json:"level"`
	Status       *string              `json:"status"`
	SupervisorID *string              `json:"supervisor_id"`
	Members      []ProjectMemberInput `json:"members" validate:"omitempty,dive"`
}
