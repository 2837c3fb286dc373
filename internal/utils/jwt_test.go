package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(testSecret, "user-1", "tenant-1", "admin", time.Minute)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), tok.Exp, 2*time.Second)

	claims, err := ParseAccessToken(testSecret, tok.Token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.Equal(t, "admin", claims.Role)
	require.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenRejects(t *testing.T) {
	valid, err := NewAccessToken(testSecret, "user-1", "tenant-1", "user", time.Minute)
	require.NoError(t, err)

	expired, err := NewAccessToken(testSecret, "user-1", "tenant-1", "user", -time.Minute)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	otherAlg, err := hs512.SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	forever, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := map[string]struct{ secret, token string }{
		"wrong secret": {"another-secret-another-secret-xx", valid.Token},
		"expired":      {testSecret, expired.Token},
		"alg none":     {testSecret, unsigned},
		"other alg":    {testSecret, otherAlg},
		"no expiry":    {testSecret, forever},
		"garbage":      {testSecret, "not.a.jwt"},
		"empty":        {testSecret, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.secret, tc.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshTokenShape(t *testing.T) {
	a, err := NewRefreshToken(time.Hour)
	require.NoError(t, err)
	b, err := NewRefreshToken(time.Hour)
	require.NoError(t, err)

	require.Len(t, a.Raw, 96)
	require.NotEqual(t, a.Raw, b.Raw)
	require.Len(t, HashRefreshRaw(a.Raw), 64)
	require.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}
