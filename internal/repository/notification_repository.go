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

// NotificationRepository persists notification records.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository instantiates a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, title, body, link, seen, created_at)
	VALUES (:id, :user_id, :title, :body, :link, :seen, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns notifications for a user, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	base := "FROM notifications WHERE user_id = $1"
	args := []interface{}{filter.UserID}
	if filter.Unseen {
		base += " AND seen = FALSE"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT id, user_id, title, body, link, seen, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", base, size, (page-1)*size)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkSeen flips the seen flag for a user's notification.
func (r *NotificationRepository) MarkSeen(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET seen = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification seen: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
