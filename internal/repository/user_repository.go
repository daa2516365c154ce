package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/univsource/urp-portal-api/internal/models"
)

// UserRepository reads portal accounts. The workflow core only consumes
// users; account management lives in the identity service.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository instantiates a user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID loads a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, faculty_id, active, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistingIDs returns which of the provided user ids exist.
func (r *UserRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id FROM users WHERE id IN (%s)", strings.Join(placeholders, ","))
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("check user ids: %w", err)
	}
	result := make(map[string]bool, len(found))
	for _, id := range found {
		result[id] = true
	}
	return result, nil
}
