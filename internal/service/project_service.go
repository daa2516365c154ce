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

type projectStore interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	CreateWithRelations(ctx context.Context, project *models.Project, members []models.ProjectMember, templates []models.TermMilestone) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
	ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error)
	ApplyMemberChanges(ctx context.Context, projectID string, toRemove []string, toAdd []models.ProjectMember, toUpdate []models.ProjectMember) error
	ListMilestones(ctx context.Context, projectID string) ([]models.ProjectMilestone, error)
	CopyMilestones(ctx context.Context, projectID string, templates []models.TermMilestone) error
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	ListMilestoneTemplates(ctx context.Context, termID string) ([]models.TermMilestone, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

type referenceReader interface {
	FindFaculty(ctx context.Context, id string) (*models.Faculty, error)
	FindDepartment(ctx context.Context, id string) (*models.Department, error)
	FindMajor(ctx context.Context, id string) (*models.Major, error)
}

type projectCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// ProjectService owns the project lifecycle: creation, updates with
// membership diffing, milestone templating and deletion side effects.
type ProjectService struct {
	repo      projectStore
	terms     termReader
	users     userReader
	refs      referenceReader
	cache     projectCache
	notifier  *Notifier
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewProjectService constructs the project lifecycle manager.
func NewProjectService(repo projectStore, terms termReader, users userReader, refs referenceReader, cache projectCache, notifier *Notifier, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ProjectService{
		repo:      repo,
		terms:     terms,
		users:     users,
		refs:      refs,
		cache:     cache,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// Create registers a project with its members and the milestone copies from
// the owning term, all inside one transaction, then notifies the supervisor
// and every member.
func (s *ProjectService) Create(ctx context.Context, req dto.CreateProjectRequest, creatorID string) (*models.HydratedProject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	duplicate, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check project code")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("project code %s already exists", req.Code))
	}

	memberIDs := make([]string, 0, len(req.Members))
	for _, member := range req.Members {
		memberIDs = append(memberIDs, member.StudentID)
	}
	if err := s.ensureUsersExist(ctx, append(memberIDs, req.SupervisorID)); err != nil {
		return nil, err
	}

	term, err := s.terms.FindByID(ctx, req.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if err := s.ensureReferencesExist(ctx, req.FacultyID, req.DepartmentID, req.MajorID); err != nil {
		return nil, err
	}

	templates, err := s.terms.ListMilestoneTemplates(ctx, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term milestones")
	}

	project := &models.Project{
		Code:         req.Code,
		Title:        req.Title,
		Description:  req.Description,
		Level:        req.Level,
		Status:       models.ProjectStatusPending,
		SupervisorID: req.SupervisorID,
		CreatedBy:    creatorID,
		TermID:       req.TermID,
		FacultyID:    req.FacultyID,
		DepartmentID: req.DepartmentID,
		MajorID:      req.MajorID,
	}
	members := make([]models.ProjectMember, 0, len(req.Members))
	for _, member := range req.Members {
		members = append(members, models.ProjectMember{StudentID: member.StudentID, RoleInTeam: member.RoleInTeam})
	}

	if err := s.repo.CreateWithRelations(ctx, project, members, templates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	link := projectLink(project.ID)
	s.notifier.Notify(ctx, project.SupervisorID, "New project assigned",
		fmt.Sprintf("You have been assigned as supervisor of project %s (%s).", project.Title, project.Code), link)
	for _, member := range members {
		s.notifier.Notify(ctx, member.StudentID, "Added to project",
			fmt.Sprintf("You have been added to project %s (%s) as %s.", project.Title, project.Code, member.RoleInTeam), link)
	}

	return s.hydrate(ctx, project)
}

// Update patches project fields, detects supervisor changes, applies a
// member-list replacement through the diff engine and self-heals missing
// milestones. An update whose member diff is empty writes and notifies
// nothing for the member part.
func (s *ProjectService) Update(ctx context.Context, id string, req dto.UpdateProjectRequest) (*models.HydratedProject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if req.Code != nil && *req.Code != project.Code {
		duplicate, err := s.repo.ExistsByCode(ctx, *req.Code, project.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check project code")
		}
		if duplicate {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("project code %s already exists", *req.Code))
		}
		project.Code = *req.Code
	}
	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Level != nil {
		project.Level = *req.Level
	}
	if req.Status != nil {
		project.Status = models.ProjectStatus(*req.Status)
	}

	oldSupervisorID := project.SupervisorID
	supervisorChanged := req.SupervisorID != nil && *req.SupervisorID != oldSupervisorID
	if supervisorChanged {
		if err := s.ensureUsersExist(ctx, []string{*req.SupervisorID}); err != nil {
			return nil, err
		}
		project.SupervisorID = *req.SupervisorID
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}

	currentMembers, err := s.repo.ListMembers(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project members")
	}

	link := projectLink(project.ID)
	if supervisorChanged {
		s.notifier.Notify(ctx, oldSupervisorID, "Removed as supervisor",
			fmt.Sprintf("You are no longer the supervisor of project %s (%s).", project.Title, project.Code), link)
		s.notifier.Notify(ctx, project.SupervisorID, "Assigned as supervisor",
			fmt.Sprintf("You have been assigned as supervisor of project %s (%s).", project.Title, project.Code), link)
		for _, member := range currentMembers {
			s.notifier.Notify(ctx, member.StudentID, "Supervisor changed",
				fmt.Sprintf("The supervisor of project %s (%s) has changed.", project.Title, project.Code), link)
		}
	}

	if req.Members != nil {
		if err := s.applyMemberReplacement(ctx, project, currentMembers, req.Members, link); err != nil {
			return nil, err
		}
	}

	if err := s.healMilestones(ctx, project); err != nil {
		return nil, err
	}

	s.invalidate(ctx, project.ID)
	return s.hydrate(ctx, project)
}

// Remove notifies the supervisor and members first, while project and
// member data are still readable, then deletes the row. Members and
// milestones cascade with it.
func (s *ProjectService) Remove(ctx context.Context, id string) error {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	members, err := s.repo.ListMembers(ctx, project.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project members")
	}

	body := fmt.Sprintf("Project %s (%s) has been deleted.", project.Title, project.Code)
	s.notifier.Notify(ctx, project.SupervisorID, "Project deleted", body, nil)
	for _, member := range members {
		s.notifier.Notify(ctx, member.StudentID, "Project deleted", body, nil)
	}

	if err := s.repo.Delete(ctx, project.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}
	s.invalidate(ctx, project.ID)
	return nil
}

// Get returns the fully hydrated project, served from cache when possible.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.HydratedProject, error) {
	if s.cache != nil {
		var cached models.HydratedProject
		if err := s.cache.Get(ctx, projectCacheKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return s.hydrate(ctx, project)
}

// List returns hydrated projects matching the filter.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.HydratedProject, *models.Pagination, error) {
	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	hydrated := make([]models.HydratedProject, 0, len(projects))
	for i := range projects {
		h, err := s.hydrate(ctx, &projects[i])
		if err != nil {
			return nil, nil, err
		}
		hydrated = append(hydrated, *h)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return hydrated, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ProjectService) applyMemberReplacement(ctx context.Context, project *models.Project, currentDetails []models.ProjectMemberDetail, desired []dto.ProjectMemberInput, link *string) error {
	current := make([]models.ProjectMember, 0, len(currentDetails))
	for _, detail := range currentDetails {
		current = append(current, detail.ProjectMember)
	}

	diff := DiffMembers(current, desired)
	if !diff.HasChanges() {
		s.logger.Debug("member list unchanged, skipping writes", zap.String("project_id", project.ID))
		return nil
	}

	addIDs := make([]string, 0, len(diff.ToAdd))
	for _, member := range diff.ToAdd {
		addIDs = append(addIDs, member.StudentID)
	}
	if err := s.ensureUsersExist(ctx, addIDs); err != nil {
		return err
	}

	removeIDs := make([]string, 0, len(diff.ToRemove))
	for _, member := range diff.ToRemove {
		removeIDs = append(removeIDs, member.StudentID)
	}
	roleUpdates := make([]models.ProjectMember, 0, len(diff.ToUpdate))
	for _, change := range diff.ToUpdate {
		roleUpdates = append(roleUpdates, models.ProjectMember{StudentID: change.StudentID, RoleInTeam: change.NewRole})
	}

	if err := s.repo.ApplyMemberChanges(ctx, project.ID, removeIDs, diff.ToAdd, roleUpdates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply member changes")
	}

	for _, member := range diff.ToRemove {
		s.notifier.Notify(ctx, member.StudentID, "Removed from project",
			fmt.Sprintf("You have been removed from project %s (%s).", project.Title, project.Code), nil)
	}
	for _, member := range diff.ToAdd {
		s.notifier.Notify(ctx, member.StudentID, "Added to project",
			fmt.Sprintf("You have been added to project %s (%s) as %s.", project.Title, project.Code, member.RoleInTeam), link)
	}
	for _, change := range diff.ToUpdate {
		s.notifier.Notify(ctx, change.StudentID, "Project role changed",
			fmt.Sprintf("Your role in project %s (%s) changed from %s to %s.", project.Title, project.Code, change.OldRole, change.NewRole), link)
	}
	return nil
}

// healMilestones copies the term's templates for projects created before
// milestones existed. The copy happens once: a project has either zero
// milestones or the complete set.
func (s *ProjectService) healMilestones(ctx context.Context, project *models.Project) error {
	milestones, err := s.repo.ListMilestones(ctx, project.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project milestones")
	}
	if len(milestones) > 0 {
		return nil
	}
	templates, err := s.terms.ListMilestoneTemplates(ctx, project.TermID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term milestones")
	}
	if len(templates) == 0 {
		return nil
	}
	if err := s.repo.CopyMilestones(ctx, project.ID, templates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy term milestones")
	}
	return nil
}

func (s *ProjectService) ensureUsersExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	existing, err := s.users.ExistingIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check users")
	}
	for _, id := range ids {
		if !existing[id] {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %s not found", id))
		}
	}
	return nil
}

func (s *ProjectService) ensureReferencesExist(ctx context.Context, facultyID, departmentID, majorID string) error {
	if _, err := s.refs.FindFaculty(ctx, facultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if _, err := s.refs.FindDepartment(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if _, err := s.refs.FindMajor(ctx, majorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "major not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load major")
	}
	return nil
}

// hydrate loads the fixed relation set every project read carries.
func (s *ProjectService) hydrate(ctx context.Context, project *models.Project) (*models.HydratedProject, error) {
	hydrated := &models.HydratedProject{Project: *project}

	members, err := s.repo.ListMembers(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project members")
	}
	hydrated.Members = members

	milestones, err := s.repo.ListMilestones(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project milestones")
	}
	hydrated.Milestones = milestones

	if faculty, err := s.refs.FindFaculty(ctx, project.FacultyID); err == nil {
		hydrated.Faculty = faculty
	}
	if department, err := s.refs.FindDepartment(ctx, project.DepartmentID); err == nil {
		hydrated.Department = department
	}
	if major, err := s.refs.FindMajor(ctx, project.MajorID); err == nil {
		hydrated.Major = major
	}
	if term, err := s.terms.FindByID(ctx, project.TermID); err == nil {
		hydrated.Term = term
	}
	if creator, err := s.users.FindByID(ctx, project.CreatedBy); err == nil {
		hydrated.Creator = creator
	}
	if supervisor, err := s.users.FindByID(ctx, project.SupervisorID); err == nil {
		hydrated.Supervisor = supervisor
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, projectCacheKey(project.ID), hydrated, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache project", zap.String("project_id", project.ID), zap.Error(err))
		}
	}
	return hydrated, nil
}

func (s *ProjectService) invalidate(ctx context.Context, projectID string) {
	if s.cache != nil {
		s.cache.Delete(ctx, projectCacheKey(projectID))
	}
}

func projectCacheKey(id string) string {
	return "project:hydrated:" + id
}

func projectLink(id string) *string {
	link := "/projects/" + id
	return &link
}
