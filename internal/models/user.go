package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin     UserRole = "SUPERADMIN"
	RoleAdmin          UserRole = "ADMIN"
	RoleRector         UserRole = "RECTOR"
	RoleFacultyDean    UserRole = "FACULTY_DEAN"
	RoleDepartmentHead UserRole = "DEPARTMENT_HEAD"
	RoleLecturer       UserRole = "LECTURER"
	RoleStudent        UserRole = "STUDENT"
)

// User represents a portal account referenced by workflow entities.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	FacultyID *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
