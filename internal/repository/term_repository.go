package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/univsource/urp-portal-api/internal/models"
)

// TermRepository reads research terms and their milestone templates. Term
// catalog management is out of scope for the workflow core.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	const query = `SELECT id, name, academic_year, start_date, end_date, is_active, created_at, updated_at FROM terms WHERE id = $1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// ListMilestoneTemplates returns a term's milestone templates in order.
func (r *TermRepository) ListMilestoneTemplates(ctx context.Context, termID string) ([]models.TermMilestone, error) {
	const query = `SELECT id, term_id, title, description, due_date, order_index, is_required, created_at
	FROM term_milestones WHERE term_id = $1 ORDER BY order_index ASC`
	var templates []models.TermMilestone
	if err := r.db.SelectContext(ctx, &templates, query, termID); err != nil {
		return nil, err
	}
	return templates, nil
}
