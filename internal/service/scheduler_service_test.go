package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/models"
)

type stubSchedulerProjects struct {
	projects map[string]*models.Project
	members  map[string][]models.ProjectMemberDetail
	promoted []string
}

func (m *stubSchedulerProjects) ListPromotable(ctx context.Context, cutoff time.Time) ([]models.Project, error) {
	var result []models.Project
	for _, p := range m.projects {
		if p.Status == models.ProjectStatusApprovedByRector && p.UpdatedAt.Before(cutoff) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *stubSchedulerProjects) PromoteToInProgress(ctx context.Context, ids []string) error {
	m.promoted = append(m.promoted, ids...)
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			p.Status = models.ProjectStatusInProgress
		}
	}
	return nil
}

func (m *stubSchedulerProjects) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubSchedulerProjects) ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error) {
	return m.members[projectID], nil
}

type stubSchedulerMilestones struct {
	due       []models.ProjectMilestone
	submitted map[string]bool
}

func (m *stubSchedulerMilestones) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.ProjectMilestone, error) {
	var result []models.ProjectMilestone
	for _, milestone := range m.due {
		if !milestone.DueDate.Before(from) && !milestone.DueDate.After(to) {
			result = append(result, milestone)
		}
	}
	return result, nil
}

func (m *stubSchedulerMilestones) HasAnySubmission(ctx context.Context, milestoneID string) (bool, error) {
	return m.submitted[milestoneID], nil
}

func newSchedulerFixture() (*stubSchedulerProjects, *stubSchedulerMilestones, *stubNotificationStore, *SchedulerService) {
	projects := &stubSchedulerProjects{
		projects: map[string]*models.Project{},
		members:  map[string][]models.ProjectMemberDetail{},
	}
	milestones := &stubSchedulerMilestones{submitted: map[string]bool{}}
	store := &stubNotificationStore{}
	svc := NewSchedulerService(projects, milestones, newTestNotifier(store), nil, zap.NewNop(), time.Minute, 7)
	return projects, milestones, store, svc
}

func TestSchedulerPromotionHonorsDwell(t *testing.T) {
	projects, _, store, svc := newSchedulerFixture()
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	projects.projects["old"] = &models.Project{
		ID: "old", Title: "Old", Status: models.ProjectStatusApprovedByRector,
		SupervisorID: "sup1", UpdatedAt: now.Add(-2 * time.Minute),
	}
	projects.projects["fresh"] = &models.Project{
		ID: "fresh", Title: "Fresh", Status: models.ProjectStatusApprovedByRector,
		SupervisorID: "sup2", UpdatedAt: now.Add(-30 * time.Second),
	}
	projects.members["old"] = []models.ProjectMemberDetail{
		{ProjectMember: models.ProjectMember{ProjectID: "old", StudentID: "s1"}},
	}

	require.NoError(t, svc.RunPromotion(context.Background(), now))

	assert.Equal(t, []string{"old"}, projects.promoted)
	assert.Equal(t, models.ProjectStatusInProgress, projects.projects["old"].Status)
	assert.Equal(t, models.ProjectStatusApprovedByRector, projects.projects["fresh"].Status)
	assert.Equal(t, []string{"Project started"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Project started"}, store.titlesFor("s1"))
	assert.Empty(t, store.titlesFor("sup2"))
}

func TestSchedulerPromotionIsConvergent(t *testing.T) {
	projects, _, _, svc := newSchedulerFixture()
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	projects.projects["old"] = &models.Project{
		ID: "old", Title: "Old", Status: models.ProjectStatusApprovedByRector,
		SupervisorID: "sup1", UpdatedAt: now.Add(-2 * time.Minute),
	}

	require.NoError(t, svc.RunPromotion(context.Background(), now))
	require.NoError(t, svc.RunPromotion(context.Background(), now.Add(time.Minute)))

	assert.Equal(t, []string{"old"}, projects.promoted)
}

func TestSchedulerReminderWording(t *testing.T) {
	projects, milestones, store, svc := newSchedulerFixture()
	now := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

	projects.projects["p1"] = &models.Project{ID: "p1", Title: "Graph Indexing", Status: models.ProjectStatusInProgress, SupervisorID: "sup1"}
	projects.members["p1"] = []models.ProjectMemberDetail{
		{ProjectMember: models.ProjectMember{ProjectID: "p1", StudentID: "s1"}},
	}
	milestones.due = []models.ProjectMilestone{
		{ID: "m-today", ProjectID: "p1", Title: "Proposal", DueDate: time.Date(2026, 4, 10, 23, 0, 0, 0, time.UTC), Status: models.MilestoneStatusActive},
		{ID: "m-tomorrow", ProjectID: "p1", Title: "Draft", DueDate: time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC), Status: models.MilestoneStatusActive},
		{ID: "m-later", ProjectID: "p1", Title: "Final", DueDate: time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC), Status: models.MilestoneStatusActive},
	}

	require.NoError(t, svc.RunReminders(context.Background(), now))

	var bodies []string
	for _, n := range store.notifications {
		if n.UserID == "s1" {
			bodies = append(bodies, n.Body)
		}
	}
	require.Len(t, bodies, 3)
	assert.Contains(t, bodies[0], "due today")
	assert.Contains(t, bodies[1], "due tomorrow")
	assert.Contains(t, bodies[2], "due in 5 days")
}

func TestSchedulerReminderSkipsSubmitted(t *testing.T) {
	projects, milestones, store, svc := newSchedulerFixture()
	now := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

	projects.projects["p1"] = &models.Project{ID: "p1", Title: "Graph Indexing", Status: models.ProjectStatusInProgress, SupervisorID: "sup1"}
	milestones.due = []models.ProjectMilestone{
		{ID: "m1", ProjectID: "p1", Title: "Proposal", DueDate: now.AddDate(0, 0, 2), Status: models.MilestoneStatusActive},
	}
	milestones.submitted["m1"] = true

	require.NoError(t, svc.RunReminders(context.Background(), now))

	assert.Empty(t, store.notifications)
}

func TestSchedulerReminderWindowBounds(t *testing.T) {
	projects, milestones, store, svc := newSchedulerFixture()
	now := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

	projects.projects["p1"] = &models.Project{ID: "p1", Title: "Graph Indexing", Status: models.ProjectStatusInProgress, SupervisorID: "sup1"}
	milestones.due = []models.ProjectMilestone{
		{ID: "m-past", ProjectID: "p1", Title: "Past", DueDate: now.AddDate(0, 0, -1), Status: models.MilestoneStatusActive},
		{ID: "m-beyond", ProjectID: "p1", Title: "Beyond", DueDate: now.AddDate(0, 0, 9), Status: models.MilestoneStatusActive},
	}

	require.NoError(t, svc.RunReminders(context.Background(), now))

	assert.Empty(t, store.notifications)
}
