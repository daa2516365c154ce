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

// CouncilRepository persists grading councils and their scores.
type CouncilRepository struct {
	db *sqlx.DB
}

// NewCouncilRepository instantiates a council repository.
func NewCouncilRepository(db *sqlx.DB) *CouncilRepository {
	return &CouncilRepository{db: db}
}

// FindByID loads a council by identifier.
func (r *CouncilRepository) FindByID(ctx context.Context, id string) (*models.Council, error) {
	const query = `SELECT id, name, faculty_id, created_at, updated_at FROM councils WHERE id = $1`
	var council models.Council
	if err := r.db.GetContext(ctx, &council, query, id); err != nil {
		return nil, err
	}
	return &council, nil
}

// IsMember reports whether the lecturer is registered on the council.
func (r *CouncilRepository) IsMember(ctx context.Context, councilID, lecturerID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM council_members WHERE council_id = $1 AND lecturer_id = $2 LIMIT 1`, councilID, lecturerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check council membership: %w", err)
	}
	return true, nil
}

// HasProjectAssignment reports whether the council is assigned to the project.
func (r *CouncilRepository) HasProjectAssignment(ctx context.Context, councilID, projectID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM council_projects WHERE council_id = $1 AND project_id = $2 LIMIT 1`, councilID, projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check council assignment: %w", err)
	}
	return true, nil
}

// UpsertGrade inserts or revises a lecturer's score for a project.
func (r *CouncilRepository) UpsertGrade(ctx context.Context, grade *models.CouncilGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO council_grades (id, council_id, project_id, lecturer_id, score, comment, created_at, updated_at)
	VALUES (:id, :council_id, :project_id, :lecturer_id, :score, :comment, :created_at, :updated_at)
	ON CONFLICT (council_id, project_id, lecturer_id)
	DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert council grade: %w", err)
	}
	return nil
}

// ListScoresByProject returns every score ever recorded for the project
// across all councils it was ever assigned to.
func (r *CouncilRepository) ListScoresByProject(ctx context.Context, projectID string) ([]float64, error) {
	var scores []float64
	if err := r.db.SelectContext(ctx, &scores, `SELECT score FROM council_grades WHERE project_id = $1`, projectID); err != nil {
		return nil, fmt.Errorf("list project scores: %w", err)
	}
	return scores, nil
}

// ListGrades returns grades for a (council, project) pair joined with
// lecturer names.
func (r *CouncilRepository) ListGrades(ctx context.Context, councilID, projectID string) ([]models.CouncilGradeDetail, error) {
	const query = `SELECT cg.id, cg.council_id, cg.project_id, cg.lecturer_id, cg.score, cg.comment, cg.created_at, cg.updated_at,
	u.full_name AS lecturer_name
	FROM council_grades cg JOIN users u ON u.id = cg.lecturer_id
	WHERE cg.council_id = $1 AND cg.project_id = $2 ORDER BY u.full_name ASC`
	var grades []models.CouncilGradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, councilID, projectID); err != nil {
		return nil, fmt.Errorf("list council grades: %w", err)
	}
	return grades, nil
}
