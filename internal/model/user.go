package model

import "time"

// Role names carried in the access token.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors the `users` table. Username and email are unique per tenant
// among live accounts; deleted rows release both.
type User struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsBanned     bool       `json:"is_banned"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// CanAuthenticate reports whether the account may log in or keep a session.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.DeletedAt == nil && !u.IsBanned
}

// UserDetails is the optional profile attached 1:1 to a user.
type UserDetails struct {
	ID             string     `json:"-"`
	UserID         string     `json:"user_id"`
	FullName       *string    `json:"full_name"`
	PhoneNumber    *string    `json:"phone_number"`
	Address        *string    `json:"address"`
	DateOfBirth    *string    `json:"date_of_birth"` // YYYY-MM-DD
	ProfilePicture *string    `json:"profile_picture"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"-"`
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 digest of the token handed to the client is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t != nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
