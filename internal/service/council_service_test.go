package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
)

type stubCouncilRepo struct {
	councils    map[string]*models.Council
	members     map[string]bool
	assignments map[string]bool
	grades      map[string]*models.CouncilGrade
	details     []models.CouncilGradeDetail
}

func gradeKey(councilID, projectID, lecturerID string) string {
	return councilID + "/" + projectID + "/" + lecturerID
}

func (m *stubCouncilRepo) FindByID(ctx context.Context, id string) (*models.Council, error) {
	if c, ok := m.councils[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubCouncilRepo) IsMember(ctx context.Context, councilID, lecturerID string) (bool, error) {
	return m.members[councilID+"/"+lecturerID], nil
}

func (m *stubCouncilRepo) HasProjectAssignment(ctx context.Context, councilID, projectID string) (bool, error) {
	return m.assignments[councilID+"/"+projectID], nil
}

func (m *stubCouncilRepo) UpsertGrade(ctx context.Context, grade *models.CouncilGrade) error {
	if m.grades == nil {
		m.grades = make(map[string]*models.CouncilGrade)
	}
	copied := *grade
	m.grades[gradeKey(grade.CouncilID, grade.ProjectID, grade.LecturerID)] = &copied
	return nil
}

func (m *stubCouncilRepo) ListScoresByProject(ctx context.Context, projectID string) ([]float64, error) {
	var scores []float64
	for _, grade := range m.grades {
		if grade.ProjectID == projectID {
			scores = append(scores, grade.Score)
		}
	}
	return scores, nil
}

func (m *stubCouncilRepo) ListGrades(ctx context.Context, councilID, projectID string) ([]models.CouncilGradeDetail, error) {
	return m.details, nil
}

type stubCouncilProjectStore struct {
	projects map[string]*models.Project
	members  map[string][]models.ProjectMemberDetail
	averages map[string]float64
}

func (m *stubCouncilProjectStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubCouncilProjectStore) ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error) {
	return m.members[projectID], nil
}

func (m *stubCouncilProjectStore) UpdateAverageScore(ctx context.Context, id string, average float64) error {
	if m.averages == nil {
		m.averages = make(map[string]float64)
	}
	m.averages[id] = average
	return nil
}

func newCouncilFixture() (*stubCouncilRepo, *stubCouncilProjectStore, *stubNotificationStore, *CouncilService) {
	repo := &stubCouncilRepo{
		councils:    map[string]*models.Council{"c1": {ID: "c1", FacultyID: "f1"}, "c2": {ID: "c2", FacultyID: "f1"}},
		members:     map[string]bool{"c1/lec1": true, "c1/lec2": true, "c1/lec3": true, "c1/lec4": true, "c2/lec5": true},
		assignments: map[string]bool{"c1/p1": true, "c2/p1": true},
		grades:      map[string]*models.CouncilGrade{},
	}
	projects := &stubCouncilProjectStore{
		projects: map[string]*models.Project{
			"p1": {ID: "p1", Title: "Graph Indexing", Status: models.ProjectStatusInProgress, SupervisorID: "sup1"},
		},
		members: map[string][]models.ProjectMemberDetail{
			"p1": {{ProjectMember: models.ProjectMember{ProjectID: "p1", StudentID: "s1"}}},
		},
	}
	store := &stubNotificationStore{}
	svc := NewCouncilService(repo, projects, newTestNotifier(store), validator.New(), zap.NewNop())
	return repo, projects, store, svc
}

func submitGrade(t *testing.T, svc *CouncilService, councilID, lecturerID string, score float64) *dto.SubmitGradeResponse {
	t.Helper()
	result, err := svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		CouncilID: councilID,
		ProjectID: "p1",
		Score:     ptrFloat(score),
	}, lecturerID)
	require.NoError(t, err)
	return result
}

func TestCouncilServiceAverageRecompute(t *testing.T) {
	_, projects, _, svc := newCouncilFixture()

	submitGrade(t, svc, "c1", "lec1", 7)
	submitGrade(t, svc, "c1", "lec2", 8)
	result := submitGrade(t, svc, "c1", "lec3", 9)

	require.NotNil(t, result.AverageScore)
	assert.InDelta(t, 8.00, *result.AverageScore, 0.001)
	assert.InDelta(t, 8.00, projects.averages["p1"], 0.001)

	// a fourth grade from a second council joins the same mean
	result = submitGrade(t, svc, "c2", "lec5", 10)
	assert.InDelta(t, 8.50, *result.AverageScore, 0.001)

	// revising an existing grade replaces it instead of appending
	result = submitGrade(t, svc, "c1", "lec1", 6)
	assert.InDelta(t, 8.25, *result.AverageScore, 0.001)
	assert.InDelta(t, 8.25, projects.averages["p1"], 0.001)
}

func TestCouncilServiceScoreBounds(t *testing.T) {
	_, _, _, svc := newCouncilFixture()

	for _, score := range []float64{-0.5, 10.5} {
		_, err := svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
			CouncilID: "c1", ProjectID: "p1", Score: ptrFloat(score),
		}, "lec1")
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}

	// inclusive boundaries
	submitGrade(t, svc, "c1", "lec1", 0)
	submitGrade(t, svc, "c1", "lec2", 10)
}

func TestCouncilServiceRequiresCouncilMembership(t *testing.T) {
	_, _, _, svc := newCouncilFixture()

	_, err := svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		CouncilID: "c1", ProjectID: "p1", Score: ptrFloat(7),
	}, "lec5")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCouncilServiceRequiresAssignment(t *testing.T) {
	repo, _, _, svc := newCouncilFixture()
	delete(repo.assignments, "c1/p1")

	_, err := svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		CouncilID: "c1", ProjectID: "p1", Score: ptrFloat(7),
	}, "lec1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestCouncilServiceRejectsUngradableProject(t *testing.T) {
	_, projects, _, svc := newCouncilFixture()
	projects.projects["p1"].Status = models.ProjectStatusDraft

	_, err := svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		CouncilID: "c1", ProjectID: "p1", Score: ptrFloat(7),
	}, "lec1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestCouncilServiceGradeFanOut(t *testing.T) {
	_, _, store, svc := newCouncilFixture()

	submitGrade(t, svc, "c1", "lec1", 7)

	assert.Equal(t, []string{"Council grade recorded"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Council grade recorded"}, store.titlesFor("s1"))
}

func TestCouncilServiceExportGradeSheetCSV(t *testing.T) {
	repo, _, _, svc := newCouncilFixture()
	repo.details = []models.CouncilGradeDetail{
		{CouncilGrade: models.CouncilGrade{Score: 8.5}, LecturerName: "Dr. Chen"},
	}

	payload, contentType, err := svc.ExportGradeSheet(context.Background(), "c1", "p1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Dr. Chen")
	assert.Contains(t, string(payload), "8.50")
}

func TestCouncilServiceExportUnsupportedFormat(t *testing.T) {
	_, _, _, svc := newCouncilFixture()

	_, _, err := svc.ExportGradeSheet(context.Background(), "c1", "p1", "xlsx")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
