package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsValidEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", "first.last+tag@example.com"} {
		require.True(t, IsValidEmail(ok), ok)
	}
	for _, bad := range []string{"", "plain", "@example.com", "a@b", "a@b.", "A <a@b.co>", "a@.com"} {
		require.False(t, IsValidEmail(bad), bad)
	}
}

func TestUsernames(t *testing.T) {
	require.True(t, IsValidMQTTUsername("sensor_01-a"))
	for _, bad := range []string{"ab", "has space", "a/b", "dev#1", "x+y", ""} {
		require.False(t, IsValidMQTTUsername(bad), bad)
	}
	require.True(t, IsValidAccountUsername("john.doe"))
	require.False(t, IsValidAccountUsername("jo"))
}

func TestPasswordProblem(t *testing.T) {
	require.Empty(t, PasswordProblem("s3cretpass"))
	require.NotEmpty(t, PasswordProblem("123"))
	require.NotEmpty(t, PasswordProblem("abcdefgh"))
	require.NotEmpty(t, PasswordProblem("12345678"))

	// bcrypt's input limit is in bytes
	require.Empty(t, PasswordProblem(strings.Repeat("a1", 36)))
	require.NotEmpty(t, PasswordProblem(strings.Repeat("a1", 36)+"b"))
	require.NotEmpty(t, PasswordProblem("pässwört1"+strings.Repeat("é", 32)))
}

func TestSSOTokens(t *testing.T) {
	require.True(t, IsValidSSOToken("abc123"))
	require.False(t, IsValidSSOToken("abc-123"))
	require.False(t, IsValidSSOToken(""))
}

func TestParseBirthDate(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	d, problem := ParseBirthDate("1990-04-01", now)
	require.Empty(t, problem)
	require.Equal(t, 1990, d.Year())

	_, problem = ParseBirthDate("2026-10-15", now)
	require.Empty(t, problem)

	_, problem = ParseBirthDate("2026-10-16", now)
	require.Equal(t, "must not be in the future", problem)

	_, problem = ParseBirthDate("01/04/1990", now)
	require.NotEmpty(t, problem)
}

func TestLooksLikeEmail(t *testing.T) {
	require.True(t, LooksLikeEmail("bad@"))
	require.False(t, LooksLikeEmail("alice"))
}
