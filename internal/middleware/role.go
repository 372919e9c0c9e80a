package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := lo.Keyify(roles)
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			response.Abort(c, apperr.Unauthorized("missing user context"))
			return
		}
		r, _ := role.(string)
		if _, ok := allowed[r]; !ok {
			response.Abort(c, apperr.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}
