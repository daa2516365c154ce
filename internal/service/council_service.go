package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
	"github.com/univsource/urp-portal-api/pkg/export"
)

type councilStore interface {
	FindByID(ctx context.Context, id string) (*models.Council, error)
	IsMember(ctx context.Context, councilID, lecturerID string) (bool, error)
	HasProjectAssignment(ctx context.Context, councilID, projectID string) (bool, error)
	UpsertGrade(ctx context.Context, grade *models.CouncilGrade) error
	ListScoresByProject(ctx context.Context, projectID string) ([]float64, error)
	ListGrades(ctx context.Context, councilID, projectID string) ([]models.CouncilGradeDetail, error)
}

type councilProjectStore interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]models.ProjectMemberDetail, error)
	UpdateAverageScore(ctx context.Context, id string, average float64) error
}

// gradableProjectStatuses are the project stages a council may grade in.
var gradableProjectStatuses = map[models.ProjectStatus]bool{
	models.ProjectStatusApprovedByLecturer:    true,
	models.ProjectStatusApprovedByFacultyDean: true,
	models.ProjectStatusApprovedByRector:      true,
	models.ProjectStatusInProgress:            true,
}

// CouncilService records council grades and keeps each project's average
// score current.
type CouncilService struct {
	repo      councilStore
	projects  councilProjectStore
	notifier  *Notifier
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewCouncilService constructs the grading aggregator.
func NewCouncilService(repo councilStore, projects councilProjectStore, notifier *Notifier, validate *validator.Validate, logger *zap.Logger) *CouncilService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouncilService{
		repo:      repo,
		projects:  projects,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// SubmitGrade upserts one lecturer's score for a project and recomputes the
// project average over every grade from every council.
func (s *CouncilService) SubmitGrade(ctx context.Context, req dto.SubmitGradeRequest, lecturerID string) (*dto.SubmitGradeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score == nil || *req.Score < 0 || *req.Score > 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 10")
	}

	if _, err := s.repo.FindByID(ctx, req.CouncilID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "council not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load council")
	}

	project, err := s.projects.FindByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if !gradableProjectStatuses[project.Status] {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("project in status %s cannot be graded", project.Status))
	}

	assigned, err := s.repo.HasProjectAssignment(ctx, req.CouncilID, req.ProjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check council assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "project is not assigned to this council")
	}

	isMember, err := s.repo.IsMember(ctx, req.CouncilID, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check council membership")
	}
	if !isMember {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only council members can submit grades")
	}

	grade := &models.CouncilGrade{
		CouncilID:  req.CouncilID,
		ProjectID:  req.ProjectID,
		LecturerID: lecturerID,
		Score:      *req.Score,
		Comment:    req.Comment,
	}
	if err := s.repo.UpsertGrade(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}

	average, err := s.recomputeAverage(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Project %s received a new council grade. Current average: %.2f.", project.Title, average)
	s.notifier.Notify(ctx, project.SupervisorID, "Council grade recorded", body, projectLink(project.ID))
	if members, err := s.projects.ListMembers(ctx, project.ID); err == nil {
		for _, member := range members {
			s.notifier.Notify(ctx, member.StudentID, "Council grade recorded", body, projectLink(project.ID))
		}
	} else {
		s.logger.Warn("failed to load members for grade fan-out", zap.String("project_id", project.ID), zap.Error(err))
	}

	return &dto.SubmitGradeResponse{Success: true, AverageScore: &average}, nil
}

// ListGrades returns the grade sheet for one council and project.
func (s *CouncilService) ListGrades(ctx context.Context, councilID, projectID string) ([]models.CouncilGradeDetail, error) {
	grades, err := s.repo.ListGrades(ctx, councilID, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// ExportGradeSheet renders the grade sheet as CSV or PDF bytes.
func (s *CouncilService) ExportGradeSheet(ctx context.Context, councilID, projectID, format string) ([]byte, string, error) {
	grades, err := s.ListGrades(ctx, councilID, projectID)
	if err != nil {
		return nil, "", err
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	data := export.Dataset{
		Headers: []string{"Lecturer", "Score", "Comment", "Graded At"},
	}
	for _, grade := range grades {
		comment := ""
		if grade.Comment != nil {
			comment = *grade.Comment
		}
		data.Rows = append(data.Rows, map[string]string{
			"Lecturer":  grade.LecturerName,
			"Score":     strconv.FormatFloat(grade.Score, 'f', 2, 64),
			"Comment":   comment,
			"Graded At": grade.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}

	switch format {
	case "pdf":
		payload, err := s.pdf.Render(data, "Grade sheet: "+project.Title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}
}

// recomputeAverage takes the mean of all grades across all councils, rounds
// it to two decimals and writes it back onto the project.
func (s *CouncilService) recomputeAverage(ctx context.Context, projectID string) (float64, error) {
	scores, err := s.repo.ListScoresByProject(ctx, projectID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	if len(scores) == 0 {
		return 0, appErrors.Clone(appErrors.ErrInternal, "no scores found after grade upsert")
	}
	var sum float64
	for _, score := range scores {
		sum += score
	}
	average := math.Round(sum/float64(len(scores))*100) / 100

	if err := s.projects.UpdateAverageScore(ctx, projectID, average); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project average")
	}
	return average, nil
}
