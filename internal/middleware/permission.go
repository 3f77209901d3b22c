package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// DomainSource resolves the authz domain a request targets. Sources are
// bound at route-registration time; nothing is parsed per request beyond
// the path parameter.
type DomainSource func(*gin.Context) string

// FromOrgParam builds the org domain from a path parameter.
func FromOrgParam(name string) DomainSource {
	return func(c *gin.Context) string { return authz.OrgDomain(c.Param(name)) }
}

// FromSchoolParam builds the school domain from a path parameter.
func FromSchoolParam(name string) DomainSource {
	return func(c *gin.Context) string { return authz.SchoolDomain(c.Param(name)) }
}

// Permission rejects requests whose principal lacks (resource, action) in
// the route's domain before the handler runs. Routes whose domain is only
// known after a lookup enforce inside the service instead.
func Permission(engine *authz.Engine, resource, action string, domain DomainSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		if !engine.Check(claims.UserID, resource, action, domain(c)) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
