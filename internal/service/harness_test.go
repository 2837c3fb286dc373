package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/iot-auth-service/internal/database/dbtest"
	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
	"github.com/iliyamo/iot-auth-service/internal/ratelimit"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/sso"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "secret123"
	testOrigin   = "http://localhost:3000"
	maxFailures  = 3
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	created []string
	revoked []string
}

func (n *recordingNotifier) CredentialCreated(_ context.Context, username string, _ bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, username)
	return nil
}

func (n *recordingNotifier) CredentialRevoked(_ context.Context, username string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revoked = append(n.revoked, username)
	return nil
}

func (n *recordingNotifier) Close() {}

type harness struct {
	tokenRepo *repository.TokenRepo
	tokens    *TokenService
	auth      *AuthService
	tenants   *TenantService
	users     *UserService
	mqtt      *MQTTService
	pub       *recordingPublisher
	notifier  *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	log := zap.NewNop()

	userRepo := repository.NewUserRepo(db)
	tenantRepo := repository.NewTenantRepo(db)
	h := &harness{
		tokenRepo: repository.NewTokenRepo(db),
		pub:       &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	h.tokens = NewTokenService(h.tokenRepo, userRepo, testSecret, 15*time.Minute, 7*24*time.Hour, log)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), maxFailures, time.Minute)
	h.auth = NewAuthService(userRepo, tenantRepo, h.tokens, limiter,
		sso.NewValidator([]string{testOrigin}), h.pub, bcrypt.MinCost, log)
	h.tenants = NewTenantService(tenantRepo, h.pub, log)
	h.users = NewUserService(userRepo, repository.NewDetailsRepo(db), h.tokens, h.pub, bcrypt.MinCost, log)
	h.mqtt = NewMQTTService(repository.NewMQTTRepo(db), h.notifier, h.pub, bcrypt.MinCost, log)
	return h
}

func (h *harness) tenant(t *testing.T, name string) *model.Tenant {
	t.Helper()
	tn, _, err := h.tenants.BootstrapCreate(context.Background(), TenantInput{Name: name})
	require.NoError(t, err)
	return tn
}

func (h *harness) register(t *testing.T, tenantID, username, email string) (*model.User, TokenPair) {
	t.Helper()
	u, pair, err := h.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: testPassword,
		TenantID: tenantID,
	})
	require.NoError(t, err)
	return u, pair
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}

// adminClaims registers an admin in tenantID and returns its verified claims.
func (h *harness) adminClaims(t *testing.T, tenantID string) *utils.Claims {
	t.Helper()
	ctx := context.Background()
	_, pair, err := h.auth.Register(ctx, RegisterInput{
		Username:   "admin",
		Email:      "admin@example.com",
		Password:   testPassword,
		TenantID:   tenantID,
		Role:       model.RoleAdmin,
		AllowAdmin: true,
	})
	require.NoError(t, err)
	claims, err := h.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	return claims
}
