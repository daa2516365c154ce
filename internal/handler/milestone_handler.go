package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/service"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
	"github.com/univsource/urp-portal-api/pkg/response"
)

// MilestoneHandler exposes milestone submission endpoints.
type MilestoneHandler struct {
	milestones *service.MilestoneService
}

// NewMilestoneHandler constructs handler.
func NewMilestoneHandler(milestones *service.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones}
}

// Submit godoc
// @Summary Submit a milestone deliverable
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param payload body dto.SubmitMilestoneRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /milestones/{id}/submissions [post]
func (h *MilestoneHandler) Submit(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	submission, err := h.milestones.Submit(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// ListSubmissions godoc
// @Summary List submissions for a milestone
// @Tags Milestones
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /milestones/{id}/submissions [get]
func (h *MilestoneHandler) ListSubmissions(c *gin.Context) {
	submissions, err := h.milestones.ListSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
