package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	req := require.New(t)
	svc := NewJWTService("secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "a@example.com", "admin")
	req.NoError(err)

	claims, err := svc.Validate(token)
	req.NoError(err)
	req.Equal(userID, claims.UserID)
	req.Equal("admin", claims.Role)
	req.Equal("a@example.com", claims.Email)
}

func TestJWTService_RejectsOtherSecret(t *testing.T) {
	token, err := NewJWTService("one", 1).Generate(uuid.New(), "a@example.com", "student")
	require.NoError(t, err)

	_, err = NewJWTService("two", 1).Validate(token)

	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	req := require.New(t)
	svc := NewJWTService("secret", 1)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.Generate(uuid.New(), "a@example.com", "student")
	req.NoError(err)

	svc.now = time.Now
	_, err = svc.Validate(token)

	req.ErrorIs(err, ErrInvalidToken)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: uuid.New(), RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("secret", 1).Validate(token)

	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	_, err := NewJWTService("secret", 1).Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
