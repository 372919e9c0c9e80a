package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

// Errors renders the last error attached with c.Error into the standard envelope.
// Handlers report failures through c.Error and return; nothing is written twice.
func Errors(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		ae := apperr.From(err)
		if ae.Code == apperr.CodeInternal {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		if c.Writer.Written() {
			return
		}
		response.Error(c, ae)
	}
}
