// Package ratelimit counts failed logins per identity and locks the identity
// once a threshold is reached inside a fixed window. The window opens on the
// first failure; a successful login clears the counter.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Store is an atomic per-key counter with expiry. Expired keys read as zero
// whether or not they have been swept.
type Store interface {
	// Incr adds one to key and returns the new count. The first increment
	// starts a window of the given length.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Count returns the current count, zero for absent or expired keys.
	Count(ctx context.Context, key string) (int64, error)
	// Reset drops the key.
	Reset(ctx context.Context, key string) error
}

// Limiter applies a failure threshold on top of a Store.
type Limiter struct {
	store  Store
	max    int64
	window time.Duration
}

func New(store Store, maxFailures int, window time.Duration) *Limiter {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Limiter{store: store, max: int64(maxFailures), window: window}
}

// Allow reports whether key may attempt a login.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.store.Count(ctx, key)
	if err != nil {
		return false, err
	}
	return n < l.max, nil
}

// Fail records a failed attempt and reports whether key is now locked.
func (l *Limiter) Fail(ctx context.Context, key string) (bool, error) {
	n, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return false, err
	}
	return n >= l.max, nil
}

// Reset clears the failures recorded for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// Window is the lockout duration, used for Retry-After hints.
func (l *Limiter) Window() time.Duration { return l.window }

// Key builds the counter key of a login identity. Identifiers are compared
// case-insensitively so "Bob" and "bob" share a counter.
func Key(tenantID, identifier string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		tenantID = "-"
	}
	return "login:" + tenantID + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

// AccountKey builds the counter key of a resolved account, shared by every
// identifier that reaches it.
func AccountKey(userID string) string {
	return "login-account:" + userID
}
