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

const bookingColumns = `id, project_id, student_id, scheduled_at, room, note, status,
	approved_by_lecturer_id, approved_by_faculty_dean_id, approved_by_rector_id,
	deleted_at, created_at, updated_at`

// BookingRepository persists defense bookings. Deletion is logical; rows are
// retained for audit.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository instantiates a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new pending booking.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	const query = `INSERT INTO bookings
	(id, project_id, student_id, scheduled_at, room, note, status, approved_by_lecturer_id, approved_by_faculty_dean_id, approved_by_rector_id, deleted_at, created_at, updated_at)
	VALUES (:id, :project_id, :student_id, :scheduled_at, :room, :note, :status, :approved_by_lecturer_id, :approved_by_faculty_dean_id, :approved_by_rector_id, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID loads a live booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1 AND deleted_at IS NULL", bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ExistsPendingAt checks for a duplicate pending booking for the same
// project and exact timestamp.
func (r *BookingRepository) ExistsPendingAt(ctx context.Context, projectID string, scheduledAt time.Time, excludeID string) (bool, error) {
	base := `SELECT 1 FROM bookings WHERE project_id = $1 AND scheduled_at = $2 AND status = $3 AND deleted_at IS NULL`
	args := []interface{}{projectID, scheduledAt, models.BookingStatusPending}
	if excludeID != "" {
		base += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate booking: %w", err)
	}
	return true, nil
}

// Update persists mutable booking columns.
func (r *BookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET scheduled_at = :scheduled_at, room = :room, note = :note, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

// AdvanceStatus writes the new status and the approver id for the stage,
// guarded by the expected predecessor status. Zero rows affected means the
// booking was already processed.
func (r *BookingRepository) AdvanceStatus(ctx context.Context, id string, from, to models.BookingStatus, approverColumn, approverID string) error {
	allowed := map[string]bool{
		"approved_by_lecturer_id":     true,
		"approved_by_faculty_dean_id": true,
		"approved_by_rector_id":       true,
	}
	if !allowed[approverColumn] {
		return fmt.Errorf("unknown approver column %q", approverColumn)
	}
	query := fmt.Sprintf(`UPDATE bookings SET status = $1, %s = $2, updated_at = $3 WHERE id = $4 AND status = $5 AND deleted_at IS NULL`, approverColumn)
	result, err := r.db.ExecContext(ctx, query, to, approverID, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("advance booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check booking update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks the booking deleted while retaining the row.
func (r *BookingRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE bookings SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("soft delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check booking delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns bookings matching the filter, newest first.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY scheduled_at DESC", bookingColumns, base)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}
