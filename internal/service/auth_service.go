package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
	"github.com/iliyamo/iot-auth-service/internal/ratelimit"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/sso"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

// AuthService runs the login and registration flows.
type AuthService struct {
	users      UserStore
	tenants    TenantStore
	tokens     *TokenService
	limiter    LoginLimiter
	redirects  *sso.Validator
	events     events
	bcryptCost int
	log        *zap.Logger
}

func NewAuthService(users UserStore, tenants TenantStore, tokens *TokenService, limiter LoginLimiter,
	redirects *sso.Validator, pub queue.Publisher, bcryptCost int, log *zap.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tenants:    tenants,
		tokens:     tokens,
		limiter:    limiter,
		redirects:  redirects,
		events:     events{pub: pub, log: log},
		bcryptCost: bcryptCost,
		log:        log,
	}
}

type LoginInput struct {
	Identifier  string
	Password    string
	TenantID    string
	RedirectURI string
	State       string
	Nonce       string
}

type LoginResult struct {
	User   *model.User
	Tokens TokenPair
	// RedirectURL is set only for an SSO login.
	RedirectURL string
}

// Login authenticates an email or username with a password. Unknown,
// banned and deleted accounts fail exactly like a wrong password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	in.Password = strings.TrimSpace(in.Password)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.RedirectURI = strings.TrimSpace(in.RedirectURI)

	var missing []string
	if in.Identifier == "" {
		missing = append(missing, "email_or_username")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, newError(KindBadRequest, "Missing required fields", required(missing...)...)
	}
	if details := sso.ValidateParams(in.RedirectURI, in.State, in.Nonce); len(details) > 0 {
		return nil, newError(KindBadRequest, "Bad Request", details...)
	}
	// the redirect target is settled before any credential is looked at
	if !s.redirects.IsValidRedirectURI(in.RedirectURI) {
		return nil, errForbidden
	}

	// the identifier is checked before the lookup, the account after it,
	// so alternating email and username shares one budget
	keys := []string{ratelimit.Key(in.TenantID, in.Identifier)}
	if !s.allow(ctx, keys[0]) {
		return nil, errTooManyLogins
	}

	u, err := s.lookup(ctx, in.TenantID, in.Identifier)
	if err != nil {
		return nil, err
	}
	if u == nil {
		utils.BurnPasswordCheck(in.Password)
		return nil, s.fail(ctx, in, keys...)
	}
	keys = append(keys, ratelimit.AccountKey(u.ID))
	if !s.allow(ctx, keys[1]) {
		return nil, errTooManyLogins
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) || !u.CanAuthenticate() {
		return nil, s.fail(ctx, in, keys...)
	}

	for _, key := range keys {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.log.Warn("reset login limiter failed", zap.Error(err))
		}
	}
	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	res := &LoginResult{User: u, Tokens: pair}
	if in.RedirectURI != "" {
		res.RedirectURL, err = s.redirects.BuildRedirect(in.RedirectURI, pair.AccessToken, in.State)
		if err != nil {
			return nil, errForbidden
		}
	}
	return res, nil
}

// lookup returns nil without error when no single active account matches.
func (s *AuthService) lookup(ctx context.Context, tenantID, identifier string) (*model.User, error) {
	var (
		u   *model.User
		err error
	)
	if utils.LooksLikeEmail(identifier) {
		u, err = s.users.GetActiveByEmail(ctx, tenantID, strings.ToLower(identifier))
	} else {
		u, err = s.users.GetActiveByUsername(ctx, tenantID, identifier)
	}
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrAmbiguous):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("look up login identity: %w", err)
	}
	return u, nil
}

// allow fails open when the limiter store is unavailable.
func (s *AuthService) allow(ctx context.Context, key string) bool {
	ok, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.log.Warn("login limiter unavailable, allowing attempt", zap.Error(err))
		return true
	}
	return ok
}

func (s *AuthService) fail(ctx context.Context, in LoginInput, keys ...string) error {
	var locked bool
	for _, key := range keys {
		hit, err := s.limiter.Fail(ctx, key)
		if err != nil {
			s.log.Warn("record login failure failed", zap.Error(err))
			continue
		}
		locked = locked || hit
	}
	if locked {
		s.log.Info("login identity locked", zap.String("tenant_id", in.TenantID))
		s.events.emit(ctx, queue.AuthEvent{
			Type:     queue.LoginLocked,
			TenantID: in.TenantID,
			Subject:  strings.ToLower(in.Identifier),
		})
	}
	return errBadCredentials
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
	TenantID string
	// AllowAdmin is set when the caller proved the tenant secret.
	AllowAdmin bool
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, TokenPair, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Password = strings.TrimSpace(in.Password)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"username", in.Username},
		{"email", in.Email},
		{"password", in.Password},
		{"tenant_id", in.TenantID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, TokenPair{}, newError(KindBadRequest, "Missing required fields", required(missing...)...)
	}

	var details []utils.FieldError
	if !utils.IsValidAccountUsername(in.Username) {
		details = append(details, utils.FieldError{Field: "username", Message: "must be 3-50 letters, digits, '.', '_' or '-'"})
	}
	if !utils.IsValidEmail(in.Email) {
		details = append(details, utils.FieldError{Field: "email", Message: "Invalid email format"})
	}
	if p := utils.PasswordProblem(in.Password); p != "" {
		details = append(details, utils.FieldError{Field: "password", Message: p})
	}
	switch in.Role {
	case "":
		in.Role = model.RoleUser
	case model.RoleUser:
	case model.RoleAdmin:
		if !in.AllowAdmin {
			details = append(details, utils.FieldError{Field: "role", Message: "admin accounts require the tenant secret"})
		}
	default:
		details = append(details, utils.FieldError{Field: "role", Message: "must be user or admin"})
	}
	if len(details) > 0 {
		return nil, TokenPair{}, newError(KindValidation, "Validation error", details...)
	}

	t, err := s.tenants.GetActiveByID(ctx, in.TenantID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !t.IsActive) {
		return nil, TokenPair{}, newError(KindValidation, "Validation error",
			utils.FieldError{Field: "tenant_id", Message: "unknown or inactive tenant"})
	}
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("load tenant: %w", err)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, TokenPair{}, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		TenantID:     in.TenantID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, TokenPair{}, userConflict(err)
	}

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.events.emit(ctx, queue.AuthEvent{Type: queue.UserRegistered, TenantID: u.TenantID, UserID: u.ID})
	return u, pair, nil
}

// Logout revokes the presented refresh token. Without one, a valid access
// token ends every session of its subject. It never fails for stale input.
func (s *AuthService) Logout(ctx context.Context, refreshRaw, accessRaw string) error {
	if strings.TrimSpace(refreshRaw) != "" {
		return s.tokens.Revoke(ctx, refreshRaw)
	}
	if strings.TrimSpace(accessRaw) == "" {
		return nil
	}
	claims, err := s.tokens.Verify(accessRaw)
	if err != nil {
		return nil
	}
	if err := s.tokens.RevokeAll(ctx, claims.Subject); err != nil {
		return err
	}
	s.events.emit(ctx, queue.AuthEvent{
		Type:     queue.SessionsRevoked,
		TenantID: claims.TenantID,
		UserID:   claims.Subject,
		ActorID:  claims.Subject,
	})
	return nil
}

// userConflict maps unique key violations on users to client errors.
func userConflict(err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return newError(KindConflict, "Email already exists")
	case errors.Is(err, repository.ErrUsernameExists):
		return newError(KindConflict, "Username already exists")
	case errors.Is(err, repository.ErrNotFound):
		return errUserNotFound
	}
	return fmt.Errorf("save user: %w", err)
}
