package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/middleware"
	"github.com/paperlens/exam-insight-api/internal/models"
)

// claimsFromContext returns the JWT claims stored by the auth middleware,
// or nil when the route is reached without one.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
