package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
)

func ptr(s string) *string { return &s }

func TestUserUpdate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	u, pair := h.register(t, tn.ID, "alice", "alice@example.com")
	h.register(t, tn.ID, "bob", "bob@example.com")

	_, err := h.users.Update(ctx, u.ID, UserPatch{})
	requireKind(t, err, KindBadRequest)

	_, err = h.users.Update(ctx, u.ID, UserPatch{Email: ptr("BOB@example.com")})
	require.EqualError(t, err, "Email already exists")

	_, err = h.users.Update(ctx, u.ID, UserPatch{Password: ptr("weak")})
	requireKind(t, err, KindValidation)
	_, err = h.users.Update(ctx, u.ID, UserPatch{Password: ptr(strings.Repeat("a1", 40))})
	requireKind(t, err, KindValidation)

	updated, err := h.users.Update(ctx, u.ID, UserPatch{Username: ptr("alice2"), Password: ptr("n3w-password")})
	require.NoError(t, err)
	require.Equal(t, "alice2", updated.Username)

	// a password change ends existing sessions
	_, _, err = h.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, errInvalidRefresh)

	_, err = h.auth.Login(ctx, LoginInput{Identifier: "alice2", Password: "n3w-password", TenantID: tn.ID})
	require.NoError(t, err)
}

func TestUserDeleteCascades(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	u, _ := h.register(t, tn.ID, "alice", "alice@example.com")
	h.register(t, tn.ID, "bob", "bob@example.com")
	_, err := h.users.UpdateDetails(ctx, u.ID, DetailsPatch{FullName: ptr("Alice A")})
	require.NoError(t, err)

	require.NoError(t, h.users.Delete(ctx, u.ID))
	require.ErrorIs(t, h.users.Delete(ctx, u.ID), errUserNotFound)
	require.Contains(t, h.pub.types(), queue.UserDeleted)

	_, err = h.auth.Login(ctx, LoginInput{Identifier: "alice@example.com", Password: testPassword, TenantID: tn.ID})
	require.ErrorIs(t, err, errBadCredentials)

	list, err := h.users.ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "bob", list[0].Username)

	// a new account with the same identity starts without the old profile
	again, _ := h.register(t, tn.ID, "alice", "alice@example.com")
	require.NotEqual(t, u.ID, again.ID)
	_, err = h.users.GetDetails(ctx, again.ID)
	require.ErrorIs(t, err, errDetailsNotFound)
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tn := h.tenant(t, "acme")
	u, _ := h.register(t, tn.ID, "alice", "alice@example.com")
	h.users.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	_, err := h.users.GetDetails(ctx, u.ID)
	require.ErrorIs(t, err, errDetailsNotFound)

	for _, dob := range []string{"2024-06-02", "01/02/1990", "1990-13-01"} {
		_, err := h.users.UpdateDetails(ctx, u.ID, DetailsPatch{DateOfBirth: ptr(dob)})
		requireKind(t, err, KindBadRequest)
	}

	d, err := h.users.UpdateDetails(ctx, u.ID, DetailsPatch{
		FullName:    ptr(" Alice A "),
		PhoneNumber: ptr("+1 555 0100"),
		DateOfBirth: ptr("2024-06-01"),
	})
	require.NoError(t, err)
	require.Equal(t, "Alice A", *d.FullName)
	require.Equal(t, "2024-06-01", *d.DateOfBirth)

	d, err = h.users.UpdateDetails(ctx, u.ID, DetailsPatch{PhoneNumber: ptr("")})
	require.NoError(t, err)
	require.Nil(t, d.PhoneNumber)
	require.Equal(t, "Alice A", *d.FullName)

	got, err := h.users.GetDetails(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.PhoneNumber)
	require.Equal(t, "2024-06-01", *got.DateOfBirth)

	_, err = h.users.UpdateDetails(ctx, "missing", DetailsPatch{FullName: ptr("x")})
	require.ErrorIs(t, err, errUserNotFound)
}

func TestSetBanned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.tenant(t, "acme")
	other := h.tenant(t, "other")
	admin := h.adminClaims(t, acme.ID)
	u, pair := h.register(t, acme.ID, "alice", "alice@example.com")
	stranger, _ := h.register(t, other.ID, "eve", "eve@example.com")

	userClaims, err := h.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	_, err = h.users.SetBanned(ctx, userClaims, u.ID, true)
	require.ErrorIs(t, err, errForbidden)

	_, err = h.users.SetBanned(ctx, admin, admin.Subject, true)
	requireKind(t, err, KindValidation)

	_, err = h.users.SetBanned(ctx, admin, stranger.ID, true)
	require.ErrorIs(t, err, errUserNotFound)

	banned, err := h.users.SetBanned(ctx, admin, u.ID, true)
	require.NoError(t, err)
	require.True(t, banned.IsBanned)
	require.Contains(t, h.pub.types(), queue.UserBanned)

	_, err = h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: testPassword, TenantID: acme.ID})
	require.ErrorIs(t, err, errBadCredentials)
	_, _, err = h.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, errInvalidRefresh)

	_, err = h.users.SetBanned(ctx, admin, u.ID, false)
	require.NoError(t, err)
	res, err := h.auth.Login(ctx, LoginInput{Identifier: "alice", Password: testPassword, TenantID: acme.ID})
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, res.User.Role)
}
