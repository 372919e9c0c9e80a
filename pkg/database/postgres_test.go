package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("insert registration: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "registrations_active_user_uniq",
	})

	req.True(IsUniqueViolation(err))
	req.True(IsUniqueViolation(err, "registrations_active_user_uniq"))
	req.False(IsUniqueViolation(err, "users_email_key"))
	req.False(IsCheckViolation(err))
	req.False(IsUniqueViolation(errors.New("plain")))
}

func TestIsNoRows(t *testing.T) {
	require.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	require.False(t, IsNoRows(errors.New("other")))
}
