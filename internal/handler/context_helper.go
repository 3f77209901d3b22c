package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/middleware"
	"github.com/duotopia/duotopia-api/internal/models"
)

// claimsFromContext returns the authenticated principal, or nil for
// anonymous requests (possible on OptionalJWT routes).
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	if value, ok := c.Get(middleware.ContextUserKey); ok {
		if claims, ok := value.(*models.JWTClaims); ok {
			return claims
		}
	}
	return nil
}
