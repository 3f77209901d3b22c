package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// RequireTeacher blocks requests whose token is not a teacher principal.
// Fine-grained domain checks happen in the services against the role
// index; this only gates the principal kind.
func RequireTeacher() gin.HandlerFunc {
	return requireKind(models.PrincipalTeacher)
}

// RequireStudent blocks requests whose token is not a student principal.
func RequireStudent() gin.HandlerFunc {
	return requireKind(models.PrincipalStudent)
}

func requireKind(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		if claims.Kind != kind {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
