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

type stubProjectRepo struct {
	projects   map[string]*models.Project
	codeExists bool
	members    map[string][]models.ProjectMemberDetail
	milestones map[string][]models.ProjectMilestone

	createdProject   *models.Project
	createdMembers   []models.ProjectMember
	createdTemplates []models.TermMilestone

	applyCalled   bool
	appliedRemove []string
	appliedAdd    []models.ProjectMember
	appliedUpdate []models.ProjectMember

	copiedTemplates []models.TermMilestone
	deletedID       string
}

func (m *stubProjectRepo) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubProjectRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return m.codeExists, nil
}

func (m *stubProjectRepo) CreateWithRelations(ctx context.Context, project *models.Project, members []models.ProjectMember, templates []models.TermMilestone) error {
	project.ID = "p-new"
	m.createdProject = project
	m.createdMembers = members
	m.createdTemplates = templates
	return nil
}

func (m *stubProjectRepo) Update(ctx context.Context, project *models.Project) error {
	if m.projects == nil {
		m.projects = make(map[string]*models.Project)
	}
	copied := *project
	m.projects[project.ID] = &copied
	return nil
}

func (m *stubProjectRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *stubProjectRepo) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	var result []models.Project
	for _, p := range m.projects {
		result = append(result, *p)
	}
	return result, len(result), nil
}

func (m *stubProjectRepo) ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error) {
	return m.members[projectID], nil
}

func (m *stubProjectRepo) IsMember(ctx context.Context, projectID, studentID string) (bool, error) {
	for _, member := range m.members[projectID] {
		if member.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *stubProjectRepo) ApplyMemberChanges(ctx context.Context, projectID string, toRemove []string, toAdd []models.ProjectMember, toUpdate []models.ProjectMember) error {
	m.applyCalled = true
	m.appliedRemove = toRemove
	m.appliedAdd = toAdd
	m.appliedUpdate = toUpdate
	return nil
}

func (m *stubProjectRepo) ListMilestones(ctx context.Context, projectID string) ([]models.ProjectMilestone, error) {
	return m.milestones[projectID], nil
}

func (m *stubProjectRepo) CopyMilestones(ctx context.Context, projectID string, templates []models.TermMilestone) error {
	m.copiedTemplates = templates
	return nil
}

type stubUserReader struct {
	users map[string]*models.User
}

func (m *stubUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubUserReader) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

type stubReferenceReader struct {
	missing bool
}

func (m *stubReferenceReader) FindFaculty(ctx context.Context, id string) (*models.Faculty, error) {
	if m.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Faculty{ID: id, Name: "Engineering"}, nil
}

func (m *stubReferenceReader) FindDepartment(ctx context.Context, id string) (*models.Department, error) {
	if m.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Department{ID: id, Name: "Software"}, nil
}

func (m *stubReferenceReader) FindMajor(ctx context.Context, id string) (*models.Major, error) {
	if m.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Major{ID: id, Name: "SE"}, nil
}

type stubProjectCache struct {
	entries map[string]models.HydratedProject
	sets    int
	deletes []string
}

func (m *stubProjectCache) Get(ctx context.Context, key string, dest interface{}) error {
	entry, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.HydratedProject) = entry
	return nil
}

func (m *stubProjectCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]models.HydratedProject)
	}
	m.entries[key] = *value.(*models.HydratedProject)
	m.sets++
	return nil
}

func (m *stubProjectCache) Delete(ctx context.Context, keys ...string) {
	m.deletes = append(m.deletes, keys...)
	for _, key := range keys {
		delete(m.entries, key)
	}
}

func newProjectFixture() (*stubProjectRepo, *stubTermReader, *stubUserReader, *stubReferenceReader, *stubProjectCache, *stubNotificationStore, *ProjectService) {
	repo := &stubProjectRepo{
		projects:   map[string]*models.Project{},
		members:    map[string][]models.ProjectMemberDetail{},
		milestones: map[string][]models.ProjectMilestone{},
	}
	terms := &stubTermReader{
		terms: map[string]*models.Term{"t1": {ID: "t1", Name: "2026 Spring"}},
		templates: map[string][]models.TermMilestone{
			"t1": {{ID: "tm1", TermID: "t1", Title: "Proposal", OrderIndex: 1}},
		},
	}
	users := &stubUserReader{users: map[string]*models.User{
		"sup1": {ID: "sup1", Role: models.RoleLecturer},
		"sup2": {ID: "sup2", Role: models.RoleLecturer},
		"s1":   {ID: "s1", Role: models.RoleStudent},
		"s2":   {ID: "s2", Role: models.RoleStudent},
		"s3":   {ID: "s3", Role: models.RoleStudent},
	}}
	refs := &stubReferenceReader{}
	cache := &stubProjectCache{}
	store := &stubNotificationStore{}
	svc := NewProjectService(repo, terms, users, refs, cache, newTestNotifier(store), validator.New(), zap.NewNop(), time.Minute)
	return repo, terms, users, refs, cache, store, svc
}

func validCreateRequest() dto.CreateProjectRequest {
	return dto.CreateProjectRequest{
		Code:         "PRJ-001",
		Title:        "Graph Indexing",
		Level:        "undergraduate",
		SupervisorID: "sup1",
		TermID:       "t1",
		FacultyID:    "f1",
		DepartmentID: "d1",
		MajorID:      "m1",
		Members: []dto.ProjectMemberInput{
			{StudentID: "s1", RoleInTeam: "leader"},
			{StudentID: "s2", RoleInTeam: "member"},
		},
	}
}

func TestProjectServiceCreate(t *testing.T) {
	repo, _, _, _, _, store, svc := newProjectFixture()

	project, err := svc.Create(context.Background(), validCreateRequest(), "admin1")
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusPending, repo.createdProject.Status)
	assert.Equal(t, "admin1", repo.createdProject.CreatedBy)
	assert.Len(t, repo.createdMembers, 2)
	require.Len(t, repo.createdTemplates, 1)
	assert.Equal(t, "Proposal", repo.createdTemplates[0].Title)

	assert.Equal(t, []string{"New project assigned"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Added to project"}, store.titlesFor("s1"))
	assert.Equal(t, []string{"Added to project"}, store.titlesFor("s2"))

	assert.Equal(t, "p-new", project.ID)
}

func TestProjectServiceCreateDuplicateCode(t *testing.T) {
	repo, _, _, _, _, _, svc := newProjectFixture()
	repo.codeExists = true

	_, err := svc.Create(context.Background(), validCreateRequest(), "admin1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestProjectServiceCreateUnknownMember(t *testing.T) {
	_, _, users, _, _, _, svc := newProjectFixture()
	delete(users.users, "s2")

	_, err := svc.Create(context.Background(), validCreateRequest(), "admin1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestProjectServiceCreateUnknownTerm(t *testing.T) {
	_, terms, _, _, _, _, svc := newProjectFixture()
	delete(terms.terms, "t1")

	_, err := svc.Create(context.Background(), validCreateRequest(), "admin1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func seedProject(repo *stubProjectRepo) *models.Project {
	project := &models.Project{
		ID: "p1", Code: "PRJ-001", Title: "Graph Indexing", Level: "undergraduate",
		Status: models.ProjectStatusPending, SupervisorID: "sup1", CreatedBy: "admin1",
		TermID: "t1", FacultyID: "f1", DepartmentID: "d1", MajorID: "m1",
	}
	repo.projects["p1"] = project
	repo.members["p1"] = []models.ProjectMemberDetail{
		{ProjectMember: models.ProjectMember{ProjectID: "p1", StudentID: "s1", RoleInTeam: "leader"}},
		{ProjectMember: models.ProjectMember{ProjectID: "p1", StudentID: "s2", RoleInTeam: "member"}},
	}
	repo.milestones["p1"] = []models.ProjectMilestone{{ID: "pm1", ProjectID: "p1", Title: "Proposal"}}
	return project
}

func TestProjectServiceUpdateMemberReplacement(t *testing.T) {
	repo, _, _, _, _, store, svc := newProjectFixture()
	seedProject(repo)

	_, err := svc.Update(context.Background(), "p1", dto.UpdateProjectRequest{
		Members: []dto.ProjectMemberInput{
			{StudentID: "s2", RoleInTeam: "leader"},
			{StudentID: "s3", RoleInTeam: "member"},
		},
	})
	require.NoError(t, err)

	require.True(t, repo.applyCalled)
	assert.Equal(t, []string{"s1"}, repo.appliedRemove)
	require.Len(t, repo.appliedAdd, 1)
	assert.Equal(t, "s3", repo.appliedAdd[0].StudentID)
	require.Len(t, repo.appliedUpdate, 1)
	assert.Equal(t, "leader", repo.appliedUpdate[0].RoleInTeam)

	assert.Equal(t, []string{"Removed from project"}, store.titlesFor("s1"))
	assert.Equal(t, []string{"Project role changed"}, store.titlesFor("s2"))
	assert.Equal(t, []string{"Added to project"}, store.titlesFor("s3"))
}

func TestProjectServiceUpdateIdenticalMembersSkipsWrites(t *testing.T) {
	repo, _, _, _, _, store, svc := newProjectFixture()
	seedProject(repo)

	_, err := svc.Update(context.Background(), "p1", dto.UpdateProjectRequest{
		Members: []dto.ProjectMemberInput{
			{StudentID: "s1", RoleInTeam: "leader"},
			{StudentID: "s2", RoleInTeam: "member"},
		},
	})
	require.NoError(t, err)

	assert.False(t, repo.applyCalled)
	assert.Empty(t, store.notifications)
}

func TestProjectServiceUpdateSupervisorChange(t *testing.T) {
	repo, _, _, _, _, store, svc := newProjectFixture()
	seedProject(repo)

	_, err := svc.Update(context.Background(), "p1", dto.UpdateProjectRequest{SupervisorID: ptrString("sup2")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Removed as supervisor"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Assigned as supervisor"}, store.titlesFor("sup2"))
	assert.Equal(t, []string{"Supervisor changed"}, store.titlesFor("s1"))
	assert.Equal(t, []string{"Supervisor changed"}, store.titlesFor("s2"))
}

func TestProjectServiceUpdateHealsMissingMilestones(t *testing.T) {
	repo, _, _, _, _, _, svc := newProjectFixture()
	seedProject(repo)
	repo.milestones["p1"] = nil

	_, err := svc.Update(context.Background(), "p1", dto.UpdateProjectRequest{Title: ptrString("Renamed")})
	require.NoError(t, err)

	require.Len(t, repo.copiedTemplates, 1)
	assert.Equal(t, "Proposal", repo.copiedTemplates[0].Title)
}

func TestProjectServiceRemoveNotifiesBeforeDelete(t *testing.T) {
	repo, _, _, _, _, store, svc := newProjectFixture()
	seedProject(repo)

	err := svc.Remove(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", repo.deletedID)
	assert.Equal(t, []string{"Project deleted"}, store.titlesFor("sup1"))
	assert.Equal(t, []string{"Project deleted"}, store.titlesFor("s1"))
	assert.Equal(t, []string{"Project deleted"}, store.titlesFor("s2"))
}

func TestProjectServiceGetServesFromCache(t *testing.T) {
	repo, _, _, _, cache, _, svc := newProjectFixture()
	cache.entries = map[string]models.HydratedProject{
		"project:hydrated:p1": {Project: models.Project{ID: "p1", Title: "Cached"}},
	}

	project, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cached", project.Title)
	assert.Empty(t, repo.projects)
}

func TestProjectServiceUpdateInvalidatesCache(t *testing.T) {
	repo, _, _, _, cache, _, svc := newProjectFixture()
	seedProject(repo)

	_, err := svc.Update(context.Background(), "p1", dto.UpdateProjectRequest{Title: ptrString("Renamed")})
	require.NoError(t, err)

	assert.Contains(t, cache.deletes, "project:hydrated:p1")
}
