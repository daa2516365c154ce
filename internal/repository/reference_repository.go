package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/univsource/urp-portal-api/internal/models"
)

// ReferenceRepository reads faculty/department/major catalog rows. These are
// consumed only as read-only lookups for existence checks and hydration.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository instantiates a reference repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// FindFaculty loads a faculty by identifier.
func (r *ReferenceRepository) FindFaculty(ctx context.Context, id string) (*models.Faculty, error) {
	const query = `SELECT id, school_id, name, code, dean_id, created_at FROM faculties WHERE id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// FindDepartment loads a department by identifier.
func (r *ReferenceRepository) FindDepartment(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, faculty_id, name, code, created_at FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// FindMajor loads a major by identifier.
func (r *ReferenceRepository) FindMajor(ctx context.Context, id string) (*models.Major, error) {
	const query = `SELECT id, department_id, name, code, created_at FROM majors WHERE id = $1`
	var major models.Major
	if err := r.db.GetContext(ctx, &major, query, id); err != nil {
		return nil, err
	}
	return &major, nil
}
