package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret-pass")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$2a$"))

	req.True(CheckPassword("s3cret-pass", hash))
	req.False(CheckPassword("wrong", hash))
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}
