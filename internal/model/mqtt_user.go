package model

import "time"

// MQTTUser is a broker credential. It lives in its own namespace, unrelated
// to users and tenants.
type MQTTUser struct {
	ID           string
	Username     string
	PasswordHash string
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}
