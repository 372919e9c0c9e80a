package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register. Public sign-up always creates students.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone" binding:"omitempty,min=7,max=20"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		_ = c.Error(apperr.Internal("failed to hash password", err))
		return
	}

	user, err := h.users.Create(c.Request.Context(), strings.TrimSpace(req.Email), hash, req.FullName, req.Phone, models.RoleStudent)
	if errors.Is(err, ErrEmailTaken) {
		_ = c.Error(apperr.Conflict("email already registered"))
		return
	}
	if err != nil {
		_ = c.Error(apperr.Internal("failed to create user", err))
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		_ = c.Error(apperr.Internal("failed to generate token", err))
		return
	}
	h.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Binding(err))
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		_ = c.Error(apperr.Internal("failed to load user", err))
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		_ = c.Error(apperr.Unauthorized("invalid email or password"))
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		_ = c.Error(apperr.Internal("failed to generate token", err))
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, ErrUserNotFound) {
		_ = c.Error(apperr.Unauthorized("user no longer exists"))
		return
	}
	if err != nil {
		_ = c.Error(apperr.Internal("failed to load user", err))
		return
	}
	response.OK(c, user.ToPublic())
}

// ValidateFunc adapts the service to the middleware's token validator signature.
func (s *JWTService) ValidateFunc() middleware.TokenValidator {
	return func(token string) (middleware.Identity, error) {
		claims, err := s.Validate(token)
		if err != nil {
			return middleware.Identity{}, err
		}
		return middleware.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
	}
}
