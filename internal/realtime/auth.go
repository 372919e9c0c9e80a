package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
)

// AuthErrorMessage is the only reason a rejected client ever sees.
const AuthErrorMessage = "Authentication error"

// Rejection reasons, logged for operators only.
var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
	ErrUserLookup   = errors.New("user lookup failed")
)

// UserFinder resolves the user a token refers to. A missing user is auth.ErrUserNotFound.
type UserFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticator admits a connection only with a valid token for an existing user.
// It shares the token validator with the HTTP API.
type Authenticator struct {
	validate middleware.TokenValidator
	users    UserFinder
	timeout  time.Duration
}

// NewAuthenticator creates a handshake authenticator.
func NewAuthenticator(validate middleware.TokenValidator, users UserFinder) *Authenticator {
	return &Authenticator{validate: validate, users: users, timeout: 5 * time.Second}
}

// Authenticate returns the connecting user, or one of ErrNoToken, ErrInvalidToken,
// ErrUserNotFound, ErrUserLookup.
func (a *Authenticator) Authenticate(r *http.Request) (*models.User, error) {
	token := HandshakeToken(r)
	if token == "" {
		return nil, ErrNoToken
	}
	id, err := a.validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	user, err := a.users.GetByID(ctx, id.UserID)
	switch {
	case errors.Is(err, auth.ErrUserNotFound), err == nil && user == nil:
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id.UserID)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrUserLookup, err)
	}
	return user, nil
}

// HandshakeToken reads the bearer token from the "token" or "auth.token" query
// parameter, falling back to the Authorization header.
func HandshakeToken(r *http.Request) string {
	q := r.URL.Query()
	for _, key := range []string{"token", "auth.token"} {
		if t := strings.TrimSpace(q.Get(key)); t != "" {
			return t
		}
	}
	if t, ok := middleware.BearerToken(r.Header.Get("Authorization")); ok {
		return t
	}
	return ""
}
