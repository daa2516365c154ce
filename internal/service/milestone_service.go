package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
)

type milestoneStore interface {
	FindMilestone(ctx context.Context, id string) (*models.ProjectMilestone, error)
	NextVersion(ctx context.Context, milestoneID, userID string) (int, error)
	CreateSubmission(ctx context.Context, submission *models.MilestoneSubmission) error
	ListSubmissions(ctx context.Context, milestoneID string) ([]models.MilestoneSubmission, error)
}

type milestoneProjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	IsMember(ctx context.Context, projectID, studentID string) (bool, error)
}

// MilestoneService handles milestone deliverable submissions.
type MilestoneService struct {
	repo      milestoneStore
	projects  milestoneProjectReader
	notifier  *Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMilestoneService constructs the submission service. The clock is
// injectable for deadline tests.
func NewMilestoneService(repo milestoneStore, projects milestoneProjectReader, notifier *Notifier, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *MilestoneService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &MilestoneService{
		repo:      repo,
		projects:  projects,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       now,
	}
}

// Submit records a new deliverable version for a milestone. Submissions are
// rejected after the due date and restricted to project members.
func (s *MilestoneService) Submit(ctx context.Context, milestoneID string, req dto.SubmitMilestoneRequest, userID string) (*models.MilestoneSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	milestone, err := s.loadMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if milestone.Status != models.MilestoneStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "milestone is not active")
	}
	if s.now().After(milestone.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("milestone deadline passed on %s", milestone.DueDate.Format("2006-01-02")))
	}

	project, err := s.projects.FindByID(ctx, milestone.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	isMember, err := s.projects.IsMember(ctx, project.ID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check project membership")
	}
	if !isMember {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only project members can submit deliverables")
	}

	version, err := s.repo.NextVersion(ctx, milestone.ID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute submission version")
	}

	submission := &models.MilestoneSubmission{
		MilestoneID: milestone.ID,
		UserID:      userID,
		Version:     version,
		FileURL:     req.FileURL,
		Note:        req.Note,
		SubmittedAt: s.now(),
	}
	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}

	body := fmt.Sprintf("A new deliverable (v%d) was submitted for milestone %s of project %s.", submission.Version, milestone.Title, project.Title)
	s.notifier.Notify(ctx, project.SupervisorID, "Milestone submission received", body, projectLink(project.ID))

	return submission, nil
}

// ListSubmissions returns every submitted version for a milestone.
func (s *MilestoneService) ListSubmissions(ctx context.Context, milestoneID string) ([]models.MilestoneSubmission, error) {
	if _, err := s.loadMilestone(ctx, milestoneID); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListSubmissions(ctx, milestoneID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

func (s *MilestoneService) loadMilestone(ctx context.Context, id string) (*models.ProjectMilestone, error) {
	milestone, err := s.repo.FindMilestone(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "milestone not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load milestone")
	}
	return milestone, nil
}
