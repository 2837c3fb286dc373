package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cretpass", bcrypt.MinCost)
	require.NoError(t, err)
	require.True(t, VerifyPassword(hash, "s3cretpass"))
	require.False(t, VerifyPassword(hash, "s3cretpas"))
	require.False(t, VerifyPassword("not-a-hash", "s3cretpass"))
}
