package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/service"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
	"github.com/univsource/urp-portal-api/pkg/response"
)

// CouncilHandler exposes council grading endpoints.
type CouncilHandler struct {
	councils *service.CouncilService
}

// NewCouncilHandler constructs handler.
func NewCouncilHandler(councils *service.CouncilService) *CouncilHandler {
	return &CouncilHandler{councils: councils}
}

// SubmitGrade godoc
// @Summary Submit or revise a council grade
// @Tags Councils
// @Accept json
// @Produce json
// @Param payload body dto.SubmitGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /councils/grades [post]
func (h *CouncilHandler) SubmitGrade(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.councils.SubmitGrade(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListGrades godoc
// @Summary List grades for a council and project
// @Tags Councils
// @Produce json
// @Param id path string true "Council ID"
// @Param projectId query string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /councils/{id}/grades [get]
func (h *CouncilHandler) ListGrades(c *gin.Context) {
	grades, err := h.councils.ListGrades(c.Request.Context(), c.Param("id"), c.Query("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// ExportGradeSheet godoc
// @Summary Export a grade sheet as CSV or PDF
// @Tags Councils
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Council ID"
// @Param projectId query string true "Project ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /councils/{id}/grades/export [get]
func (h *CouncilHandler) ExportGradeSheet(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.councils.ExportGradeSheet(c.Request.Context(), c.Param("id"), c.Query("projectId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("grade-sheet-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
