package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/models"
)

type schedulerProjectStore interface {
	ListPromotable(ctx context.Context, cutoff time.Time) ([]models.Project, error)
	PromoteToInProgress(ctx context.Context, ids []string) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error)
}

type schedulerMilestoneStore interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]models.ProjectMilestone, error)
	HasAnySubmission(ctx context.Context, milestoneID string) (bool, error)
}

type schedulerMetrics interface {
	ObserveSchedulerRun(rule string, err error)
}

// SchedulerService holds the two periodic rules: promoting fully approved
// projects into IN_PROGRESS and reminding members of upcoming milestone
// deadlines. Both take the reference time as an argument so runs are
// reproducible in tests.
type SchedulerService struct {
	projects   schedulerProjectStore
	milestones schedulerMilestoneStore
	notifier   *Notifier
	metrics    schedulerMetrics
	logger     *zap.Logger

	promotionDwell time.Duration
	reminderWindow int
}

// NewSchedulerService wires the periodic rules.
func NewSchedulerService(projects schedulerProjectStore, milestones schedulerMilestoneStore, notifier *Notifier, metrics schedulerMetrics, logger *zap.Logger, promotionDwell time.Duration, reminderWindowDays int) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if promotionDwell <= 0 {
		promotionDwell = time.Minute
	}
	if reminderWindowDays <= 0 {
		reminderWindowDays = 7
	}
	return &SchedulerService{
		projects:       projects,
		milestones:     milestones,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger,
		promotionDwell: promotionDwell,
		reminderWindow: reminderWindowDays,
	}
}

// RunPromotion moves projects that have held APPROVED_BY_RECTOR for at
// least the dwell period into IN_PROGRESS and notifies their teams.
func (s *SchedulerService) RunPromotion(ctx context.Context, now time.Time) error {
	err := s.runPromotion(ctx, now)
	if s.metrics != nil {
		s.metrics.ObserveSchedulerRun("promotion", err)
	}
	return err
}

func (s *SchedulerService) runPromotion(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.promotionDwell)
	projects, err := s.projects.ListPromotable(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list promotable projects: %w", err)
	}
	if len(projects) == 0 {
		return nil
	}

	ids := make([]string, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, project.ID)
	}
	if err := s.projects.PromoteToInProgress(ctx, ids); err != nil {
		return fmt.Errorf("promote projects: %w", err)
	}
	s.logger.Info("promoted projects to in progress", zap.Int("count", len(ids)))

	for _, project := range projects {
		body := fmt.Sprintf("Project %s is fully approved and is now in progress.", project.Title)
		s.notifier.Notify(ctx, project.SupervisorID, "Project started", body, projectLink(project.ID))
		s.notifyProjectMembers(ctx, project.ID, "Project started", body)
	}
	return nil
}

// RunReminders notifies project teams about active milestones due within
// the reminder window. Milestones that already have a submission are
// skipped.
func (s *SchedulerService) RunReminders(ctx context.Context, now time.Time) error {
	err := s.runReminders(ctx, now)
	if s.metrics != nil {
		s.metrics.ObserveSchedulerRun("reminders", err)
	}
	return err
}

func (s *SchedulerService) runReminders(ctx context.Context, now time.Time) error {
	from := startOfDay(now)
	to := endOfDay(now.AddDate(0, 0, s.reminderWindow))

	milestones, err := s.milestones.ListDueBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list due milestones: %w", err)
	}

	for _, milestone := range milestones {
		submitted, err := s.milestones.HasAnySubmission(ctx, milestone.ID)
		if err != nil {
			s.logger.Warn("failed to check milestone submissions",
				zap.String("milestone_id", milestone.ID), zap.Error(err))
			continue
		}
		if submitted {
			continue
		}

		project, err := s.projects.FindByID(ctx, milestone.ProjectID)
		if err != nil {
			s.logger.Warn("failed to load project for reminder",
				zap.String("project_id", milestone.ProjectID), zap.Error(err))
			continue
		}

		due := dueWording(from, milestone.DueDate)
		body := fmt.Sprintf("Milestone %s of project %s is due %s.", milestone.Title, project.Title, due)
		s.notifier.Notify(ctx, project.SupervisorID, "Milestone deadline approaching", body, projectLink(project.ID))
		s.notifyProjectMembers(ctx, project.ID, "Milestone deadline approaching", body)
	}
	return nil
}

func (s *SchedulerService) notifyProjectMembers(ctx context.Context, projectID, title, body string) {
	members, err := s.projects.ListMembers(ctx, projectID)
	if err != nil {
		s.logger.Warn("failed to load members for scheduler fan-out",
			zap.String("project_id", projectID), zap.Error(err))
		return
	}
	for _, member := range members {
		s.notifier.Notify(ctx, member.StudentID, title, body, projectLink(projectID))
	}
}

// dueWording phrases the distance to a deadline in whole days.
func dueWording(today, due time.Time) string {
	days := int(startOfDay(due).Sub(today).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
