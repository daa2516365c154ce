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

type bookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ExistsPendingAt(ctx context.Context, projectID string, scheduledAt time.Time, excludeID string) (bool, error)
	Update(ctx context.Context, booking *models.Booking) error
	AdvanceStatus(ctx context.Context, id string, from, to models.BookingStatus, approverColumn, approverID string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type bookingProjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error)
	IsMember(ctx context.Context, projectID, studentID string) (bool, error)
}

// ApprovalStage identifies one step of the booking approval chain.
type ApprovalStage string

const (
	StageLecturer    ApprovalStage = "lecturer"
	StageFacultyDean ApprovalStage = "faculty_dean"
	StageRector      ApprovalStage = "rector"
)

type stageRule struct {
	expect        models.BookingStatus
	next          models.BookingStatus
	column        string
	label         string
	priorApprover string
}

var stageRules = map[ApprovalStage]stageRule{
	StageLecturer: {
		expect: models.BookingStatusPending,
		next:   models.BookingStatusApprovedByLecturer,
		column: "approved_by_lecturer_id",
		label:  "approved by lecturer",
	},
	StageFacultyDean: {
		expect:        models.BookingStatusApprovedByLecturer,
		next:          models.BookingStatusApprovedByFacultyDean,
		column:        "approved_by_faculty_dean_id",
		label:         "approved by faculty dean",
		priorApprover: "lecturer",
	},
	StageRector: {
		expect:        models.BookingStatusApprovedByFacultyDean,
		next:          models.BookingStatusApprovedByRector,
		column:        "approved_by_rector_id",
		label:         "approved by rector",
		priorApprover: "faculty dean",
	},
}

// bookableProjectStatuses are the project stages in which a defense booking
// may be created.
var bookableProjectStatuses = map[models.ProjectStatus]bool{
	models.ProjectStatusApprovedByLecturer:    true,
	models.ProjectStatusApprovedByFacultyDean: true,
	models.ProjectStatusApprovedByRector:      true,
	models.ProjectStatusInProgress:            true,
	models.ProjectStatusCompleted:             true,
}

// BookingService owns booking creation and the three-step approval chain.
type BookingService struct {
	repo      bookingStore
	projects  bookingProjectReader
	terms     termReader
	notifier  *Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs the booking state machine.
func NewBookingService(repo bookingStore, projects bookingProjectReader, terms termReader, notifier *Notifier, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		projects:  projects,
		terms:     terms,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// Create registers a pending booking after checking the project stage, the
// requester's membership, the term window and duplicate pending requests.
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest, studentID string) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	project, err := s.loadProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !bookableProjectStatuses[project.Status] {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("project in status %s cannot be booked", project.Status))
	}

	isMember, err := s.projects.IsMember(ctx, project.ID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check project membership")
	}
	if !isMember {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only project members can request a defense booking")
	}

	if err := s.ensureWithinTermWindow(ctx, project.TermID, req.ScheduledAt); err != nil {
		return nil, err
	}

	duplicate, err := s.repo.ExistsPendingAt(ctx, project.ID, req.ScheduledAt, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate booking")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending booking already exists for this project and time")
	}

	booking := &models.Booking{
		ProjectID:   project.ID,
		StudentID:   studentID,
		ScheduledAt: req.ScheduledAt,
		Room:        req.Room,
		Note:        req.Note,
		Status:      models.BookingStatusPending,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	body := fmt.Sprintf("A defense booking for project %s was requested for %s.", project.Title, booking.ScheduledAt.Format(time.RFC1123))
	s.notifier.Notify(ctx, project.SupervisorID, "Defense booking requested", body, bookingLink(booking.ID))
	s.notifyMembers(ctx, project, studentID, "Defense booking requested", body, bookingLink(booking.ID))

	return booking, nil
}

// Update patches a booking, re-validating the term window when the time
// changes, then notifies every member.
func (s *BookingService) Update(ctx context.Context, id string, req dto.UpdateBookingRequest) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, booking.ProjectID)
	if err != nil {
		return nil, err
	}

	if req.ScheduledAt != nil && !req.ScheduledAt.Equal(booking.ScheduledAt) {
		if err := s.ensureWithinTermWindow(ctx, project.TermID, *req.ScheduledAt); err != nil {
			return nil, err
		}
		booking.ScheduledAt = *req.ScheduledAt
	}
	if req.Room != nil {
		booking.Room = req.Room
	}
	if req.Note != nil {
		booking.Note = *req.Note
	}

	if err := s.repo.Update(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}

	body := fmt.Sprintf("The defense booking for project %s changed; it is now scheduled for %s.", project.Title, booking.ScheduledAt.Format(time.RFC1123))
	s.notifyMembers(ctx, project, "", "Defense booking updated", body, bookingLink(booking.ID))

	return booking, nil
}

// Remove soft-deletes a booking, notifying supervisor and members first
// using the pre-deletion state.
func (s *BookingService) Remove(ctx context.Context, id string) error {
	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return err
	}
	project, err := s.loadProject(ctx, booking.ProjectID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("The defense booking for project %s on %s was cancelled.", project.Title, booking.ScheduledAt.Format(time.RFC1123))
	s.notifier.Notify(ctx, project.SupervisorID, "Defense booking cancelled", body, nil)
	s.notifyMembers(ctx, project, "", "Defense booking cancelled", body, nil)

	if err := s.repo.SoftDelete(ctx, booking.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
	}
	return nil
}

// Get returns a live booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.loadBooking(ctx, id)
}

// List returns bookings matching the filter.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	bookings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// Approve executes one stage of the approval chain. Both the authority
// check and the status precondition must pass. A reviewer may instead set
// REJECTED at their stage, which is terminal.
func (s *BookingService) Approve(ctx context.Context, id string, stage ApprovalStage, req dto.ApproveBookingRequest, actor *models.JWTClaims) (*models.Booking, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	rule, ok := stageRules[stage]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown approval stage %s", stage))
	}

	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, booking.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := s.checkAuthority(stage, project, actor); err != nil {
		return nil, err
	}

	if booking.Status != rule.expect {
		if rule.priorApprover != "" && booking.Status == models.BookingStatusPending {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("booking must be approved by %s first", rule.priorApprover))
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "booking already processed")
	}

	next := rule.next
	label := rule.label
	if !req.Approve {
		next = models.BookingStatusRejected
		label = "rejected"
	}

	if err := s.repo.AdvanceStatus(ctx, booking.ID, rule.expect, next, rule.column, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "booking already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance booking")
	}

	booking.Status = next
	approverID := actor.UserID
	switch stage {
	case StageLecturer:
		booking.ApprovedByLecturerID = &approverID
	case StageFacultyDean:
		booking.ApprovedByFacultyDeanID = &approverID
	case StageRector:
		booking.ApprovedByRectorID = &approverID
	}

	body := fmt.Sprintf("The defense booking for project %s was %s.", project.Title, label)
	s.notifier.Notify(ctx, booking.StudentID, "Defense booking "+label, body, bookingLink(booking.ID))
	s.notifyMembers(ctx, project, booking.StudentID, "Defense booking "+label, body, bookingLink(booking.ID))

	return booking, nil
}

func (s *BookingService) checkAuthority(stage ApprovalStage, project *models.Project, actor *models.JWTClaims) error {
	switch stage {
	case StageLecturer:
		if actor.UserID != project.SupervisorID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the project supervisor can approve at this stage")
		}
	case StageFacultyDean:
		if actor.FacultyID == "" || actor.FacultyID != project.FacultyID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the dean of the project's faculty can approve at this stage")
		}
	case StageRector:
		// role gating happens at the route; no identity check beyond that
	}
	return nil
}

func (s *BookingService) ensureWithinTermWindow(ctx context.Context, termID string, scheduledAt time.Time) error {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	end := term.EndDate
	endOfDay := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())
	if scheduledAt.Before(term.StartDate) || scheduledAt.After(endOfDay) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("booking time must fall within the term window (%s to %s)",
			term.StartDate.Format("2006-01-02"), term.EndDate.Format("2006-01-02")))
	}
	return nil
}

func (s *BookingService) notifyMembers(ctx context.Context, project *models.Project, skipStudentID, title, body string, link *string) {
	members, err := s.projects.ListMembers(ctx, project.ID)
	if err != nil {
		s.logger.Warn("failed to load members for booking fan-out", zap.String("project_id", project.ID), zap.Error(err))
		return
	}
	for _, member := range members {
		if member.StudentID == skipStudentID {
			continue
		}
		s.notifier.Notify(ctx, member.StudentID, title, body, link)
	}
}

func (s *BookingService) loadBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) loadProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

func bookingLink(id string) *string {
	link := "/bookings/" + id
	return &link
}
