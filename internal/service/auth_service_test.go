package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
)

func TestLoginTrimsIdentifierAndPassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	u, _ := h.register(t, tn.ID, "alice", "alice@example.com")

	for _, ident := range []string{"alice@example.com", "  ALICE@example.com ", "alice", "\talice\n"} {
		res, err := h.auth.Login(ctx, LoginInput{Identifier: ident, Password: "  " + testPassword + " ", TenantID: tn.ID})
		require.NoError(t, err, ident)
		require.Equal(t, u.ID, res.User.ID)
		require.NotEmpty(t, res.Tokens.AccessToken)
		require.NotEmpty(t, res.Tokens.RefreshToken)
		require.Empty(t, res.RedirectURL)
	}
}

func TestLoginMissingFieldsIsBadRequest(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Login(context.Background(), LoginInput{Identifier: "   ", Password: ""})
	requireKind(t, err, KindBadRequest)
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Details, 2)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	h.register(t, tn.ID, "alice", "alice@example.com")
	banned, _ := h.register(t, tn.ID, "bob", "bob@example.com")
	admin := h.adminClaims(t, tn.ID)
	_, err := h.users.SetBanned(ctx, admin, banned.ID, true)
	require.NoError(t, err)

	cases := []LoginInput{
		{Identifier: "alice", Password: "wrong-pass1"},
		{Identifier: "nobody", Password: testPassword},
		{Identifier: "not-an-email@", Password: testPassword},
		{Identifier: "bob", Password: testPassword},
	}
	for _, in := range cases {
		in.TenantID = tn.ID
		_, err := h.auth.Login(ctx, in)
		require.ErrorIs(t, err, errBadCredentials, in.Identifier)
	}
}

func TestLoginLocksIdentityAfterThreshold(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	h.register(t, tn.ID, "alice", "alice@example.com")

	for i := 0; i < maxFailures; i++ {
		_, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: "wrong-pass1", TenantID: tn.ID})
		require.ErrorIs(t, err, errBadCredentials)
	}

	_, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: testPassword, TenantID: tn.ID})
	requireKind(t, err, KindRateLimited)
	require.Contains(t, h.pub.types(), queue.LoginLocked)

	// an unrelated identity is not affected
	h.register(t, tn.ID, "carol", "carol@example.com")
	_, err = h.auth.Login(ctx, LoginInput{Identifier: "carol", Password: testPassword, TenantID: tn.ID})
	require.NoError(t, err)
}

func TestLoginLockoutIsSharedAcrossIdentifiers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	h.register(t, tn.ID, "alice", "alice@example.com")

	for i := 0; i < maxFailures; i++ {
		ident := "alice"
		if i%2 == 1 {
			ident = "alice@example.com"
		}
		_, err := h.auth.Login(ctx, LoginInput{Identifier: ident, Password: "wrong-pass1", TenantID: tn.ID})
		require.ErrorIs(t, err, errBadCredentials)
	}

	for _, ident := range []string{"alice", "ALICE@example.com"} {
		_, err := h.auth.Login(ctx, LoginInput{Identifier: ident, Password: testPassword, TenantID: tn.ID})
		requireKind(t, err, KindRateLimited)
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	h.register(t, tn.ID, "alice", "alice@example.com")

	fail := func() {
		_, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: "wrong-pass1", TenantID: tn.ID})
		require.ErrorIs(t, err, errBadCredentials)
	}
	for round := 0; round < 3; round++ {
		for i := 0; i < maxFailures-1; i++ {
			fail()
		}
		_, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: testPassword, TenantID: tn.ID})
		require.NoError(t, err, "round %d", round)
	}
}

func TestLoginRejectsForeignRedirectBeforeCredentials(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	h.register(t, tn.ID, "alice", "alice@example.com")

	for i := 0; i < maxFailures+1; i++ {
		_, err := h.auth.Login(ctx, LoginInput{
			Identifier:  "alice",
			Password:    "wrong-pass1",
			TenantID:    tn.ID,
			RedirectURI: "https://evil.example/steal",
		})
		require.ErrorIs(t, err, errForbidden)
	}

	// forbidden attempts never touched the failure counter
	_, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: testPassword, TenantID: tn.ID})
	require.NoError(t, err)
}

func TestLoginBuildsSSORedirect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	h.register(t, tn.ID, "alice", "alice@example.com")

	res, err := h.auth.Login(ctx, LoginInput{
		Identifier:  "alice",
		Password:    testPassword,
		TenantID:    tn.ID,
		RedirectURI: testOrigin + "/callback",
		State:       "abc123",
		Nonce:       "n0nce",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.RedirectURL, testOrigin+"/callback#"))
	require.Contains(t, res.RedirectURL, "access_token="+res.Tokens.AccessToken)
	require.Contains(t, res.RedirectURL, "state=abc123")
}

func TestLoginRejectsMalformedSSOParams(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Login(context.Background(), LoginInput{
		Identifier: "alice",
		Password:   testPassword,
		State:      "<script>",
	})
	requireKind(t, err, KindBadRequest)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")

	cases := map[string]struct {
		in   RegisterInput
		kind Kind
	}{
		"missing fields": {RegisterInput{Username: "alice"}, KindBadRequest},
		"bad email":      {RegisterInput{Username: "alice", Email: "alice@", Password: testPassword, TenantID: tn.ID}, KindValidation},
		"weak password":  {RegisterInput{Username: "alice", Email: "alice@example.com", Password: "short", TenantID: tn.ID}, KindValidation},
		"long password":  {RegisterInput{Username: "alice", Email: "alice@example.com", Password: strings.Repeat("a1", 40), TenantID: tn.ID}, KindValidation},
		"bad username":   {RegisterInput{Username: "a b", Email: "alice@example.com", Password: testPassword, TenantID: tn.ID}, KindValidation},
		"unknown tenant": {RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword, TenantID: "nope"}, KindValidation},
		"admin w/o key":  {RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword, TenantID: tn.ID, Role: "admin"}, KindValidation},
		"unknown role":   {RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword, TenantID: tn.ID, Role: "root"}, KindValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := h.auth.Register(ctx, tc.in)
			requireKind(t, err, tc.kind)
		})
	}
}

func TestRegisterConflictsAndScope(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.tenant(t, "acme")
	other := h.tenant(t, "other")
	u, pair := h.register(t, acme.ID, "alice", "Alice@Example.com")
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, model.RoleUser, u.Role)
	require.NotEmpty(t, pair.AccessToken)
	require.Contains(t, h.pub.types(), queue.UserRegistered)

	_, _, err := h.auth.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: testPassword, TenantID: acme.ID})
	requireKind(t, err, KindConflict)
	require.EqualError(t, err, "Email already exists")

	_, _, err = h.auth.Register(ctx, RegisterInput{Username: "alice", Email: "alice2@example.com", Password: testPassword, TenantID: acme.ID})
	require.EqualError(t, err, "Username already exists")

	// uniqueness is per tenant
	h.register(t, other.ID, "alice", "alice@example.com")

	admin, _, err := h.auth.Register(ctx, RegisterInput{
		Username: "root", Email: "root@example.com", Password: testPassword,
		TenantID: acme.ID, Role: "ADMIN", AllowAdmin: true,
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, admin.Role)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	_, pair := h.register(t, tn.ID, "alice", "alice@example.com")

	require.NoError(t, h.auth.Logout(ctx, pair.RefreshToken, ""))
	require.NoError(t, h.auth.Logout(ctx, pair.RefreshToken, ""))
	require.NoError(t, h.auth.Logout(ctx, "", "garbage"))
	require.NoError(t, h.auth.Logout(ctx, "", ""))

	_, _, err := h.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, errInvalidRefresh)
}

func TestLogoutWithAccessTokenEndsAllSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	_, first := h.register(t, tn.ID, "alice", "alice@example.com")
	second, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: testPassword, TenantID: tn.ID})
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, "", first.AccessToken))
	require.Contains(t, h.pub.types(), queue.SessionsRevoked)

	for _, raw := range []string{first.RefreshToken, second.Tokens.RefreshToken} {
		_, _, err := h.tokens.Refresh(ctx, raw)
		require.ErrorIs(t, err, errInvalidRefresh)
	}
}
