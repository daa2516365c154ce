package models

import "time"

// ProjectStatus is the project lifecycle state. Transitions up to
// APPROVED_BY_RECTOR happen through explicit approval calls; the scheduler
// promotes APPROVED_BY_RECTOR to IN_PROGRESS after a dwell period.
type ProjectStatus string

const (
	ProjectStatusDraft                 ProjectStatus = "DRAFT"
	ProjectStatusPending               ProjectStatus = "PENDING"
	ProjectStatusApprovedByLecturer    ProjectStatus = "APPROVED_BY_LECTURER"
	ProjectStatusApprovedByFacultyDean ProjectStatus = "APPROVED_BY_FACULTY_DEAN"
	ProjectStatusApprovedByRector      ProjectStatus = "APPROVED_BY_RECTOR"
	ProjectStatusInProgress            ProjectStatus = "IN_PROGRESS"
	ProjectStatusCompleted             ProjectStatus = "COMPLETED"
	ProjectStatusCancelled             ProjectStatus = "CANCELLED"
)

// ActiveProjectStatuses are the stages in which milestone deadlines are
// enforced and reminders are raised.
var ActiveProjectStatuses = []ProjectStatus{
	ProjectStatusApprovedByLecturer,
	ProjectStatusApprovedByFacultyDean,
	ProjectStatusApprovedByRector,
	ProjectStatusInProgress,
}

// MilestoneStatus marks a project milestone active or retired.
type MilestoneStatus string

const (
	MilestoneStatusActive   MilestoneStatus = "ACTIVE"
	MilestoneStatusInactive MilestoneStatus = "INACTIVE"
)

// Project is the root aggregate of the workflow engine. AverageScore is
// derived from council grades and never written by clients.
type Project struct {
	ID           string        `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	Level        string        `db:"level" json:"level"`
	Status       ProjectStatus `db:"status" json:"status"`
	SupervisorID string        `db:"supervisor_id" json:"supervisor_id"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	TermID       string        `db:"term_id" json:"term_id"`
	FacultyID    string        `db:"faculty_id" json:"faculty_id"`
	DepartmentID string        `db:"department_id" json:"department_id"`
	MajorID      string        `db:"major_id" json:"major_id"`
	AverageScore *float64      `db:"average_score" json:"average_score,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ProjectMember links a student to a project with a team role label.
type ProjectMember struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  string    `db:"project_id" json:"project_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	RoleInTeam string    `db:"role_in_team" json:"role_in_team"`
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
}

// ProjectMemberDetail joins a membership row with the student record.
type ProjectMemberDetail struct {
	ProjectMember
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// ProjectMilestone is the per-project instantiation of a term milestone
// template. A project has either zero milestones or a complete copy of its
// term's templates.
type ProjectMilestone struct {
	ID          string          `db:"id" json:"id"`
	ProjectID   string          `db:"project_id" json:"project_id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	DueDate     time.Time       `db:"due_date" json:"due_date"`
	OrderIndex  int             `db:"order_index" json:"order_index"`
	IsRequired  bool            `db:"is_required" json:"is_required"`
	Status      MilestoneStatus `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// HydratedProject is the fully relation-loaded project shape returned by
// every read path. Callers never need a second round trip for these.
type HydratedProject struct {
	Project
	Faculty    *Faculty              `json:"faculty,omitempty"`
	Department *Department           `json:"department,omitempty"`
	Major      *Major                `json:"major,omitempty"`
	Term       *Term                 `json:"term,omitempty"`
	Creator    *User                 `json:"creator,omitempty"`
	Supervisor *User                 `json:"supervisor,omitempty"`
	Members    []ProjectMemberDetail `json:"members"`
	Milestones []ProjectMilestone    `json:"milestones"`
}

// ProjectFilter selects projects for list endpoints.
type ProjectFilter struct {
	FacultyID    string
	DepartmentID string
	SupervisorID string
	Status       ProjectStatus
	TermID       string
	Page         int
	PageSize     int
}
