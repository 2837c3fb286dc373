package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
)

// The store interfaces are satisfied by the repository package. Unique
// constraints in the store, not locks here, decide duplicate races.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetActiveByEmail(ctx context.Context, tenantID, email string) (*model.User, error)
	GetActiveByUsername(ctx context.Context, tenantID, username string) (*model.User, error)
	GetActiveByID(ctx context.Context, id string) (*model.User, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]model.User, error)
	Update(ctx context.Context, u *model.User) error
	SetBanned(ctx context.Context, id string, banned bool) error
	SoftDelete(ctx context.Context, id string) error
}

type DetailsStore interface {
	GetActiveByUserID(ctx context.Context, userID string) (*model.UserDetails, error)
	Save(ctx context.Context, d *model.UserDetails) error
}

type TenantStore interface {
	Create(ctx context.Context, t *model.Tenant) error
	GetActiveByID(ctx context.Context, id string) (*model.Tenant, error)
	GetActiveByName(ctx context.Context, name string) (*model.Tenant, error)
	ListActive(ctx context.Context) ([]model.Tenant, error)
	Update(ctx context.Context, t *model.Tenant) error
	SoftDelete(ctx context.Context, id string) error
}

type MQTTStore interface {
	Create(ctx context.Context, m *model.MQTTUser) error
	GetActiveByUsername(ctx context.Context, username string) (*model.MQTTUser, error)
	ListActive(ctx context.Context) ([]model.MQTTUser, error)
	SoftDelete(ctx context.Context, username string) error
}

type TokenStore interface {
	Store(ctx context.Context, t *model.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RevokeByHash(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// LoginLimiter is satisfied by *ratelimit.Limiter.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// events publishes best effort: a broker outage is logged and never fails
// the request that caused the event.
type events struct {
	pub queue.Publisher
	log *zap.Logger
}

func (e events) emit(ctx context.Context, ev queue.AuthEvent) {
	if e.pub == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn("publish auth event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
