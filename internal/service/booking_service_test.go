package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
)

type stubBookingRepo struct {
	bookings    map[string]*models.Booking
	pendingAt   bool
	advanceErr  error
	advancedTo  models.BookingStatus
	advancedCol string
	advancedBy  string
	deletedID   string
}

func (m *stubBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	booking.ID = "b-new"
	if m.bookings == nil {
		m.bookings = make(map[string]*models.Booking)
	}
	copied := *booking
	m.bookings[booking.ID] = &copied
	return nil
}

func (m *stubBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubBookingRepo) ExistsPendingAt(ctx context.Context, projectID string, scheduledAt time.Time, excludeID string) (bool, error) {
	return m.pendingAt, nil
}

func (m *stubBookingRepo) Update(ctx context.Context, booking *models.Booking) error {
	copied := *booking
	m.bookings[booking.ID] = &copied
	return nil
}

func (m *stubBookingRepo) AdvanceStatus(ctx context.Context, id string, from, to models.BookingStatus, approverColumn, approverID string) error {
	if m.advanceErr != nil {
		return m.advanceErr
	}
	m.advancedTo = to
	m.advancedCol = approverColumn
	m.advancedBy = approverID
	if b, ok := m.bookings[id]; ok {
		b.Status = to
	}
	return nil
}

func (m *stubBookingRepo) SoftDelete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *stubBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var result []models.Booking
	for _, b := range m.bookings {
		result = append(result, *b)
	}
	return result, nil
}

func newBookingFixture() (*stubBookingRepo, *stubProjectRepo, *stubTermReader, *stubNotificationStore, *BookingService) {
	repo := &stubBookingRepo{bookings: map[string]*models.Booking{}}
	projects := &stubProjectRepo{
		projects:   map[string]*models.Project{},
		members:    map[string][]models.ProjectMemberDetail{},
		milestones: map[string][]models.ProjectMilestone{},
	}
	seedProject(projects)
	projects.projects["p1"].Status = models.ProjectStatusInProgress

	terms := &stubTermReader{terms: map[string]*models.Term{
		"t1": {
			ID:        "t1",
			StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		},
	}}
	store := &stubNotificationStore{}
	svc := NewBookingService(repo, projects, terms, newTestNotifier(store), validator.New(), zap.NewNop())
	return repo, projects, terms, store, svc
}

func validBookingRequest() dto.CreateBookingRequest {
	return dto.CreateBookingRequest{
		ProjectID:   "p1",
		ScheduledAt: time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC),
	}
}

func TestBookingServiceCreate(t *testing.T) {
	_, _, _, store, svc := newBookingFixture()

	booking, err := svc.Create(context.Background(), validBookingRequest(), "s1")
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, "s1", booking.StudentID)
	assert.Equal(t, []string{"Defense booking requested"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Defense booking requested"}, store.titlesFor("s2"))
	assert.Empty(t, store.titlesFor("s1"))
}

func TestBookingServiceCreateRequiresApprovedProject(t *testing.T) {
	_, projects, _, _, svc := newBookingFixture()
	projects.projects["p1"].Status = models.ProjectStatusPending

	_, err := svc.Create(context.Background(), validBookingRequest(), "s1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestBookingServiceCreateRequiresMembership(t *testing.T) {
	_, _, _, _, svc := newBookingFixture()

	_, err := svc.Create(context.Background(), validBookingRequest(), "outsider")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestBookingServiceCreateOutsideTermWindow(t *testing.T) {
	_, _, _, _, svc := newBookingFixture()

	req := validBookingRequest()
	req.ScheduledAt = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), req, "s1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBookingServiceCreateAcceptsTermBoundaries(t *testing.T) {
	_, _, _, _, svc := newBookingFixture()

	req := validBookingRequest()
	req.ScheduledAt = time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	_, err := svc.Create(context.Background(), req, "s1")
	require.NoError(t, err)

	req.ScheduledAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), req, "s1")
	require.NoError(t, err)
}

func TestBookingServiceCreateDuplicatePending(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	repo.pendingAt = true

	_, err := svc.Create(context.Background(), validBookingRequest(), "s1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func seedBooking(repo *stubBookingRepo, status models.BookingStatus) {
	repo.bookings["b1"] = &models.Booking{
		ID:          "b1",
		ProjectID:   "p1",
		StudentID:   "s1",
		ScheduledAt: time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC),
		Status:      status,
	}
}

func TestBookingServiceApprovalChain(t *testing.T) {
	repo, _, _, store, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)

	lecturer := &models.JWTClaims{UserID: "sup1", Role: models.RoleLecturer}
	dean := &models.JWTClaims{UserID: "dean1", Role: models.RoleFacultyDean, FacultyID: "f1"}
	rector := &models.JWTClaims{UserID: "rector1", Role: models.RoleRector}

	booking, err := svc.Approve(context.Background(), "b1", StageLecturer, dto.ApproveBookingRequest{Approve: true}, lecturer)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApprovedByLecturer, booking.Status)
	assert.Equal(t, "approved_by_lecturer_id", repo.advancedCol)
	assert.Equal(t, "sup1", repo.advancedBy)

	booking, err = svc.Approve(context.Background(), "b1", StageFacultyDean, dto.ApproveBookingRequest{Approve: true}, dean)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApprovedByFacultyDean, booking.Status)
	assert.Equal(t, "approved_by_faculty_dean_id", repo.advancedCol)

	booking, err = svc.Approve(context.Background(), "b1", StageRector, dto.ApproveBookingRequest{Approve: true}, rector)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApprovedByRector, booking.Status)
	assert.Equal(t, "approved_by_rector_id", repo.advancedCol)

	assert.Contains(t, store.titlesFor("s1"), "Defense booking approved by lecturer")
	assert.Contains(t, store.titlesFor("s1"), "Defense booking approved by rector")
}

func TestBookingServiceApprovalOutOfOrder(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)

	dean := &models.JWTClaims{UserID: "dean1", Role: models.RoleFacultyDean, FacultyID: "f1"}
	_, err := svc.Approve(context.Background(), "b1", StageFacultyDean, dto.ApproveBookingRequest{Approve: true}, dean)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "must be approved by lecturer first")
}

func TestBookingServiceLecturerAuthority(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)

	other := &models.JWTClaims{UserID: "sup2", Role: models.RoleLecturer}
	_, err := svc.Approve(context.Background(), "b1", StageLecturer, dto.ApproveBookingRequest{Approve: true}, other)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestBookingServiceDeanFacultyMismatch(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusApprovedByLecturer)

	dean := &models.JWTClaims{UserID: "dean1", Role: models.RoleFacultyDean, FacultyID: "f2"}
	_, err := svc.Approve(context.Background(), "b1", StageFacultyDean, dto.ApproveBookingRequest{Approve: true}, dean)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestBookingServiceAlreadyProcessed(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusApprovedByLecturer)

	lecturer := &models.JWTClaims{UserID: "sup1", Role: models.RoleLecturer}
	_, err := svc.Approve(context.Background(), "b1", StageLecturer, dto.ApproveBookingRequest{Approve: true}, lecturer)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already processed")
}

func TestBookingServiceConcurrentAdvanceLoses(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)
	repo.advanceErr = sql.ErrNoRows

	lecturer := &models.JWTClaims{UserID: "sup1", Role: models.RoleLecturer}
	_, err := svc.Approve(context.Background(), "b1", StageLecturer, dto.ApproveBookingRequest{Approve: true}, lecturer)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestBookingServiceRejectionIsTerminal(t *testing.T) {
	repo, _, _, store, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)

	lecturer := &models.JWTClaims{UserID: "sup1", Role: models.RoleLecturer}
	booking, err := svc.Approve(context.Background(), "b1", StageLecturer, dto.ApproveBookingRequest{Approve: false}, lecturer)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRejected, booking.Status)
	assert.Contains(t, store.titlesFor("s1"), "Defense booking rejected")

	dean := &models.JWTClaims{UserID: "dean1", Role: models.RoleFacultyDean, FacultyID: "f1"}
	_, err = svc.Approve(context.Background(), "b1", StageFacultyDean, dto.ApproveBookingRequest{Approve: true}, dean)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already processed")
}

func TestBookingServiceUpdateRevalidatesWindow(t *testing.T) {
	repo, _, _, _, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)

	outside := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	_, err := svc.Update(context.Background(), "b1", dto.UpdateBookingRequest{ScheduledAt: &outside})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBookingServiceRemoveNotifiesFirst(t *testing.T) {
	repo, _, _, store, svc := newBookingFixture()
	seedBooking(repo, models.BookingStatusPending)

	err := svc.Remove(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", repo.deletedID)
	assert.Equal(t, []string{"Defense booking cancelled"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Defense booking cancelled"}, store.titlesFor("s1"))
}
