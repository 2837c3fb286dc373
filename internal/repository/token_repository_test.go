package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/iot-auth-service/internal/database/dbtest"
	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/repository"
)

func TestTokenRepoRevokeHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	tokens := repository.NewTokenRepo(dbtest.Open(t))
	require.NoError(t, tokens.Store(ctx, &model.RefreshToken{
		ID: uuid.NewString(), UserID: "u1", TokenHash: "abc", ExpiresAt: time.Now().Add(time.Hour),
	}))

	ok, err := tokens.RevokeByHash(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tokens.RevokeByHash(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = tokens.RevokeByHash(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = tokens.GetByHash(ctx, "unknown")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokenRepoDeleteStale(t *testing.T) {
	ctx := context.Background()
	tokens := repository.NewTokenRepo(dbtest.Open(t))
	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	require.NoError(t, tokens.Store(ctx, &model.RefreshToken{ID: uuid.NewString(), UserID: "u1", TokenHash: "old", ExpiresAt: past}))
	require.NoError(t, tokens.Store(ctx, &model.RefreshToken{ID: uuid.NewString(), UserID: "u1", TokenHash: "live", ExpiresAt: future}))

	n, err := tokens.DeleteStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	live, err := tokens.GetByHash(ctx, "live")
	require.NoError(t, err)
	require.True(t, live.Usable(time.Now()))
}
