package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univsource/urp-portal-api/internal/models"
)

const projectColumns = `id, code, title, description, level, status, supervisor_id, created_by, term_id,
	faculty_id, department_id, major_id, average_score, created_at, updated_at`

// ProjectRepository persists projects, their members and milestones.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository instantiates a project repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByID loads a bare project row.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE id = $1", projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// ExistsByCode checks code uniqueness, optionally excluding one project.
func (r *ProjectRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	base := "SELECT 1 FROM projects WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check project code: %w", err)
	}
	return true, nil
}

// CreateWithRelations inserts the project, its members and the milestone
// copies from the owning term inside one transaction.
func (r *ProjectRepository) CreateWithRelations(ctx context.Context, project *models.Project, members []models.ProjectMember, templates []models.TermMilestone) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertProject = `INSERT INTO projects
	(id, code, title, description, level, status, supervisor_id, created_by, term_id, faculty_id, department_id, major_id, average_score, created_at, updated_at)
	VALUES (:id, :code, :title, :description, :level, :status, :supervisor_id, :created_by, :term_id, :faculty_id, :department_id, :major_id, :average_score, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertProject, project); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	if err = insertMembersTx(ctx, tx, project.ID, members, now); err != nil {
		return err
	}

	if err = copyMilestonesTx(ctx, tx, project.ID, templates, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create project tx: %w", err)
	}
	return nil
}

// Update persists mutable project columns.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	const query = `UPDATE projects SET code = :code, title = :title, description = :description, level = :level,
	status = :status, supervisor_id = :supervisor_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// UpdateAverageScore writes the derived council-grade average.
func (r *ProjectRepository) UpdateAverageScore(ctx context.Context, id string, average float64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE projects SET average_score = $1, updated_at = $2 WHERE id = $3`, average, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update project average score: %w", err)
	}
	return nil
}

// Delete removes a project; members and milestones cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// ListMembers returns membership rows joined with student records.
func (r *ProjectRepository) ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error) {
	const query = `SELECT pm.id, pm.project_id, pm.student_id, pm.role_in_team, pm.joined_at,
	u.full_name AS student_name, u.email AS student_email
	FROM project_members pm JOIN users u ON u.id = pm.student_id
	WHERE pm.project_id = $1 ORDER BY pm.joined_at ASC`
	var members []models.ProjectMemberDetail
	if err := r.db.SelectContext(ctx, &members, query, projectID); err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	return members, nil
}

// IsMember reports whether the student belongs to the project.
func (r *ProjectRepository) IsMember(ctx context.Context, projectID, studentID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM project_members WHERE project_id = $1 AND student_id = $2 LIMIT 1`, projectID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check project membership: %w", err)
	}
	return true, nil
}

// ApplyMemberChanges executes the diff result as three batched operations
// inside one transaction.
func (r *ProjectRepository) ApplyMemberChanges(ctx context.Context, projectID string, toRemove []string, toAdd []models.ProjectMember, toUpdate []models.ProjectMember) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin member changes tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	if len(toRemove) > 0 {
		query, args, buildErr := sqlx.In(`DELETE FROM project_members WHERE project_id = ? AND student_id IN (?)`, projectID, toRemove)
		if buildErr != nil {
			err = fmt.Errorf("build member removal: %w", buildErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("remove project members: %w", err)
		}
	}

	if err = insertMembersTx(ctx, tx, projectID, toAdd, now); err != nil {
		return err
	}

	for _, member := range toUpdate {
		if _, err = tx.ExecContext(ctx, `UPDATE project_members SET role_in_team = $1 WHERE project_id = $2 AND student_id = $3`, member.RoleInTeam, projectID, member.StudentID); err != nil {
			return fmt.Errorf("update member role: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE projects SET updated_at = $1 WHERE id = $2`, now, projectID); err != nil {
		return fmt.Errorf("touch project: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit member changes tx: %w", err)
	}
	return nil
}

// ListMilestones returns project milestones in order.
func (r *ProjectRepository) ListMilestones(ctx context.Context, projectID string) ([]models.ProjectMilestone, error) {
	const query = `SELECT id, project_id, title, description, due_date, order_index, is_required, status, created_at
	FROM project_milestones WHERE project_id = $1 ORDER BY order_index ASC`
	var milestones []models.ProjectMilestone
	if err := r.db.SelectContext(ctx, &milestones, query, projectID); err != nil {
		return nil, fmt.Errorf("list project milestones: %w", err)
	}
	return milestones, nil
}

// CopyMilestones lazily instantiates term templates for a project that has
// none yet.
func (r *ProjectRepository) CopyMilestones(ctx context.Context, projectID string, templates []models.TermMilestone) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin copy milestones tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = copyMilestonesTx(ctx, tx, projectID, templates, time.Now().UTC()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit copy milestones tx: %w", err)
	}
	return nil
}

// List returns bare project rows matching the filter.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	base := "FROM projects WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", projectColumns, base, size, (page-1)*size)
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return projects, total, nil
}

// ListPromotable selects projects in APPROVED_BY_RECTOR whose last update is
// older than the cutoff.
func (r *ProjectRepository) ListPromotable(ctx context.Context, cutoff time.Time) ([]models.Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE status = $1 AND updated_at < $2", projectColumns)
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, models.ProjectStatusApprovedByRector, cutoff); err != nil {
		return nil, fmt.Errorf("list promotable projects: %w", err)
	}
	return projects, nil
}

// PromoteToInProgress bulk-updates the given projects to IN_PROGRESS.
func (r *ProjectRepository) PromoteToInProgress(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE projects SET status = ?, updated_at = ? WHERE id IN (?)`, models.ProjectStatusInProgress, time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("build promotion update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("promote projects: %w", err)
	}
	return nil
}

func insertMembersTx(ctx context.Context, tx *sqlx.Tx, projectID string, members []models.ProjectMember, now time.Time) error {
	for i := range members {
		member := &members[i]
		if member.ID == "" {
			member.ID = uuid.NewString()
		}
		member.ProjectID = projectID
		if member.JoinedAt.IsZero() {
			member.JoinedAt = now
		}
		const query = `INSERT INTO project_members (id, project_id, student_id, role_in_team, joined_at)
		VALUES (:id, :project_id, :student_id, :role_in_team, :joined_at)`
		if _, err := tx.NamedExecContext(ctx, query, member); err != nil {
			return fmt.Errorf("insert project member: %w", err)
		}
	}
	return nil
}

func copyMilestonesTx(ctx context.Context, tx *sqlx.Tx, projectID string, templates []models.TermMilestone, now time.Time) error {
	for _, template := range templates {
		milestone := models.ProjectMilestone{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			Title:       template.Title,
			Description: template.Description,
			DueDate:     template.DueDate,
			OrderIndex:  template.OrderIndex,
			IsRequired:  template.IsRequired,
			Status:      models.MilestoneStatusActive,
			CreatedAt:   now,
		}
		const query = `INSERT INTO project_milestones (id, project_id, title, description, due_date, order_index, is_required, status, created_at)
		VALUES (:id, :project_id, :title, :description, :due_date, :order_index, :is_required, :status, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, milestone); err != nil {
			return fmt.Errorf("copy term milestone: %w", err)
		}
	}
	return nil
}
