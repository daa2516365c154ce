package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/univsource/urp-portal-api/internal/middleware"
	"github.com/univsource/urp-portal-api/internal/models"
)

// currentClaims pulls the authenticated user's claims off the gin context.
func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
