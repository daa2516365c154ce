package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univsource/urp-portal-api/internal/models"
	"github.com/univsource/urp-portal-api/internal/service"
	appErrors "github.com/univsource/urp-portal-api/pkg/errors"
	"github.com/univsource/urp-portal-api/pkg/response"
)

// NotificationHandler exposes the notification inbox.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary List the current user's notifications
// @Tags Notifications
// @Produce json
// @Param unseen query bool false "Only unseen"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.NotificationFilter{
		UserID:   claims.UserID,
		Unseen:   c.Query("unseen") == "true",
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	notifications, pagination, err := h.notifications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, pagination)
}

// MarkSeen godoc
// @Summary Mark a notification as seen
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/seen [post]
func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.notifications.MarkSeen(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
