package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// Identity is what a validated access token says about its bearer.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// TokenValidator verifies an access token.
type TokenValidator func(token string) (Identity, error)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Abort(c, apperr.Unauthorized("missing or malformed authorization header"))
			return
		}
		id, err := validate(token)
		if err != nil {
			response.Abort(c, apperr.Unauthorized("invalid or expired token"))
			return
		}
		c.Set(ContextUserID, id.UserID)
		c.Set(ContextUserRole, id.Role)
		c.Set(ContextUserEmail, id.Email)
		c.Next()
	}
}

// OptionalJWT sets user claims when a token is sent and lets anonymous requests through.
// A token that is sent but invalid is still rejected.
func OptionalJWT(validate TokenValidator) gin.HandlerFunc {
	required := JWT(validate)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		required(c)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserID returns the authenticated user's ID. Only valid behind JWT.
func UserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextUserID)
	uid, _ := id.(uuid.UUID)
	return uid
}

// Role returns the authenticated user's role. Only valid behind JWT.
func Role(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
