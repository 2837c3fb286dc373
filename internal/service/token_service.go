package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

// TokenPair is what a successful login, registration or refresh hands out.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService issues stateless access tokens and tracked, rotating refresh
// tokens.
type TokenService struct {
	tokens     TokenStore
	users      UserStore
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewTokenService(tokens TokenStore, users UserStore, secret string, accessTTL, refreshTTL time.Duration, log *zap.Logger) *TokenService {
	return &TokenService{
		tokens:     tokens,
		users:      users,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
		now:        time.Now,
	}
}

// RefreshTTL is the lifetime of issued refresh tokens, used for cookie Max-Age.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue mints an access token carrying subject, tenant and role, plus a new
// refresh token whose digest is persisted.
func (s *TokenService) Issue(ctx context.Context, u *model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.secret, u.ID, u.TenantID, u.Role, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.Store(ctx, &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: utils.HashRefreshRaw(refresh.Raw),
		ExpiresAt: refresh.Exp,
	}); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// Verify checks an access token without consulting the store.
func (s *TokenService) Verify(raw string) (*utils.Claims, error) {
	claims, err := utils.ParseAccessToken(s.secret, strings.TrimSpace(raw))
	if err != nil {
		return nil, errUnauthorized
	}
	return claims, nil
}

// Authenticate verifies an access token and that its subject is still an
// active account, so bans and deletions take effect before expiry.
func (s *TokenService) Authenticate(ctx context.Context, raw string) (*utils.Claims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetActiveByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, errUnauthorized
	case err != nil:
		return nil, fmt.Errorf("load token subject: %w", err)
	case !u.CanAuthenticate():
		return nil, errUnauthorized
	}
	// role and tenant follow the account, not the possibly stale token
	claims.Role = u.Role
	claims.TenantID = u.TenantID
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
// Every failure looks the same to the caller.
func (s *TokenService) Refresh(ctx context.Context, raw string) (TokenPair, *model.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, nil, errMissingRefresh
	}
	hash := utils.HashRefreshRaw(raw)

	tok, err := s.tokens.GetByHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, nil, errInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("load refresh token: %w", err)
	}
	if !tok.Usable(s.now()) {
		return TokenPair{}, nil, errInvalidRefresh
	}

	won, err := s.tokens.RevokeByHash(ctx, hash)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !won {
		return TokenPair{}, nil, errInvalidRefresh
	}

	u, err := s.users.GetActiveByID(ctx, tok.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, nil, errInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("load refresh subject: %w", err)
	}
	if !u.CanAuthenticate() {
		if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
			s.log.Warn("revoke sessions of blocked account failed", zap.String("user_id", u.ID), zap.Error(err))
		}
		return TokenPair{}, nil, errInvalidRefresh
	}

	pair, err := s.Issue(ctx, u)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, u, nil
}

// Revoke invalidates one refresh token. Unknown and already revoked tokens
// are not an error.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if _, err := s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll ends every session of a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

// Sweep deletes tokens that expired or were revoked more than a day ago.
// Correctness never depends on it: unusable tokens are rejected on read.
func (s *TokenService) Sweep(ctx context.Context) (int64, error) {
	return s.tokens.DeleteStale(ctx, s.now().Add(-24*time.Hour))
}
