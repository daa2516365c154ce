package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univsource/urp-portal-api/internal/models"
)

// MilestoneRepository persists milestone submissions and serves the
// reminder queries run by the scheduler.
type MilestoneRepository struct {
	db *sqlx.DB
}

// NewMilestoneRepository instantiates a milestone repository.
func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// FindMilestone loads a project milestone by identifier.
func (r *MilestoneRepository) FindMilestone(ctx context.Context, id string) (*models.ProjectMilestone, error) {
	const query = `SELECT id, project_id, title, description, due_date, order_index, is_required, status, created_at
	FROM project_milestones WHERE id = $1`
	var milestone models.ProjectMilestone
	if err := r.db.GetContext(ctx, &milestone, query, id); err != nil {
		return nil, err
	}
	return &milestone, nil
}

// NextVersion returns the next submission version for (milestone, user).
func (r *MilestoneRepository) NextVersion(ctx context.Context, milestoneID, userID string) (int, error) {
	var current sql.NullInt64
	err := r.db.GetContext(ctx, &current, `SELECT MAX(version) FROM milestone_submissions WHERE milestone_id = $1 AND user_id = $2`, milestoneID, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve submission version: %w", err)
	}
	return int(current.Int64) + 1, nil
}

// CreateSubmission inserts a new submission row.
func (r *MilestoneRepository) CreateSubmission(ctx context.Context, submission *models.MilestoneSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO milestone_submissions (id, milestone_id, user_id, version, file_url, note, submitted_at)
	VALUES (:id, :milestone_id, :user_id, :version, :file_url, :note, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create milestone submission: %w", err)
	}
	return nil
}

// ListSubmissions returns submissions for a milestone, newest version first.
func (r *MilestoneRepository) ListSubmissions(ctx context.Context, milestoneID string) ([]models.MilestoneSubmission, error) {
	const query = `SELECT id, milestone_id, user_id, version, file_url, note, submitted_at
	FROM milestone_submissions WHERE milestone_id = $1 ORDER BY user_id ASC, version DESC`
	var submissions []models.MilestoneSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, milestoneID); err != nil {
		return nil, fmt.Errorf("list milestone submissions: %w", err)
	}
	return submissions, nil
}

// HasAnySubmission reports whether any user has submitted for the milestone.
func (r *MilestoneRepository) HasAnySubmission(ctx context.Context, milestoneID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM milestone_submissions WHERE milestone_id = $1 LIMIT 1`, milestoneID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check milestone submissions: %w", err)
	}
	return true, nil
}

// ListDueBetween returns active milestones due inside [from, to] whose
// owning project is in an active stage.
func (r *MilestoneRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.ProjectMilestone, error) {
	query, args, err := sqlx.In(`SELECT pm.id, pm.project_id, pm.title, pm.description, pm.due_date, pm.order_index, pm.is_required, pm.status, pm.created_at
	FROM project_milestones pm JOIN projects p ON p.id = pm.project_id
	WHERE pm.status = ? AND pm.due_date >= ? AND pm.due_date <= ? AND p.status IN (?)
	ORDER BY pm.due_date ASC`, models.MilestoneStatusActive, from, to, models.ActiveProjectStatuses)
	if err != nil {
		return nil, fmt.Errorf("build reminder query: %w", err)
	}
	var milestones []models.ProjectMilestone
	if err := r.db.SelectContext(ctx, &milestones, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list due milestones: %w", err)
	}
	return milestones, nil
}
