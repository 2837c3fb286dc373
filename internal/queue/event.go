// Package queue defines the auth events exchanged over the message broker,
// the RabbitMQ publisher that emits them and the audit consumer that
// records them.
package queue

import (
	"context"
	"time"
)

// Event types.
const (
	UserRegistered  = "user.registered"
	UserDeleted     = "user.deleted"
	UserBanned      = "user.banned"
	UserUnbanned    = "user.unbanned"
	LoginLocked     = "login.locked"
	TenantCreated   = "tenant.created"
	TenantDeleted   = "tenant.deleted"
	MQTTUserCreated = "mqtt.user.created"
	MQTTUserDeleted = "mqtt.user.deleted"
	SessionsRevoked = "session.revoked_all"
)

// AuthEvent is published after a security-relevant state change. It never
// carries secrets.
type AuthEvent struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Subject    string    `json:"subject,omitempty"` // username, tenant name or login identifier
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits auth events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev AuthEvent) error
}

// NopPublisher drops every event. It is used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuthEvent) error { return nil }
