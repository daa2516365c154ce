package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/models"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
)

type notificationReader interface {
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkSeen(ctx context.Context, id, userID string) error
}

// NotificationService serves the inbox read path. Writes happen through
// the Notifier.
type NotificationService struct {
	repo   notificationReader
	logger *zap.Logger
}

// NewNotificationService constructs the inbox service.
func NewNotificationService(repo notificationReader, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns a user's notifications, newest first, with pagination.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	notifications, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// MarkSeen flips the seen flag on one of the user's notifications.
func (s *NotificationService) MarkSeen(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkSeen(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification")
	}
	return nil
}
