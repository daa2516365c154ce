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

// BookingHandler exposes defense booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create godoc
// @Summary Request a defense booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Get godoc
// @Summary Fetch a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param projectId query string false "Filter by project"
// @Param studentId query string false "Filter by requesting student"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.BookingFilter{
		ProjectID: c.Query("projectId"),
		StudentID: c.Query("studentId"),
		Status:    models.BookingStatus(c.Query("status")),
	}
	bookings, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Update godoc
// @Summary Update a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateBookingRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Delete godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.bookings.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ApproveLecturer godoc
// @Summary Lecturer decision on a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.ApproveBookingRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings/{id}/approve/lecturer [post]
func (h *BookingHandler) ApproveLecturer(c *gin.Context) {
	h.approve(c, service.StageLecturer)
}

// ApproveFacultyDean godoc
// @Summary Faculty dean decision on a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.ApproveBookingRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings/{id}/approve/faculty-dean [post]
func (h *BookingHandler) ApproveFacultyDean(c *gin.Context) {
	h.approve(c, service.StageFacultyDean)
}

// ApproveRector godoc
// @Summary Rector decision on a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.ApproveBookingRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings/{id}/approve/rector [post]
func (h *BookingHandler) ApproveRector(c *gin.Context) {
	h.approve(c, service.StageRector)
}

func (h *BookingHandler) approve(c *gin.Context, stage service.ApprovalStage) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ApproveBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.Approve(c.Request.Context(), c.Param("id"), stage, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
