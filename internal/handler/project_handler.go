package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
	"github.com/univsource/urp-portal-api/internal/service"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
	"github.com/univsource/urp-portal-api/pkg/response"
)

// ProjectHandler exposes project lifecycle endpoints.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler constructs handler.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// Create godoc
// @Summary Register a research project
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body dto.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	project, err := h.projects.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Get godoc
// @Summary Fetch a project with all relations
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param facultyId query string false "Filter by faculty"
// @Param departmentId query string false "Filter by department"
// @Param supervisorId query string false "Filter by supervisor"
// @Param termId query string false "Filter by term"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	filter := models.ProjectFilter{
		FacultyID:    c.Query("facultyId"),
		DepartmentID: c.Query("departmentId"),
		SupervisorID: c.Query("supervisorId"),
		TermID:       c.Query("termId"),
		Status:       models.ProjectStatus(c.Query("status")),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "pageSize", 20),
	}
	projects, pagination, err := h.projects.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// Update godoc
// @Summary Update a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body dto.UpdateProjectRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	project, err := h.projects.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Delete godoc
// @Summary Delete a project and its relations
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
