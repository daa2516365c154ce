package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/models"
)

// stubNotificationStore records every persisted notification so tests can
// assert on fan-out.
type stubNotificationStore struct {
	notifications []models.Notification
}

func (s *stubNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	s.notifications = append(s.notifications, *notification)
	return nil
}

func (s *stubNotificationStore) titlesFor(userID string) []string {
	var titles []string
	for _, n := range s.notifications {
		if n.UserID == userID {
			titles = append(titles, n.Title)
		}
	}
	return titles
}

// newTestNotifier builds a Notifier without a queue, so Notify persists
// synchronously and assertions see the result immediately.
func newTestNotifier(store *stubNotificationStore) *Notifier {
	return NewNotifier(store, zap.NewNop(), nil)
}

type stubTermReader struct {
	terms     map[string]*models.Term
	templates map[string][]models.TermMilestone
}

func (s *stubTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := s.terms[id]; ok {
		return term, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubTermReader) ListMilestoneTemplates(ctx context.Context, termID string) ([]models.TermMilestone, error) {
	return s.templates[termID], nil
}

func ptrString(v string) *string {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}
