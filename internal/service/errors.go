// Package service implements the authentication core: login with lockout,
// token issue and rotation, tenants, user accounts and the MQTT auth engine.
// Handlers translate the Kind of a returned *Error into an HTTP status.
package service

import (
	"errors"

	"github.com/iliyamo/iot-auth-service/internal/utils"
)

// Kind classifies a failure independent of transport.
type Kind int

const (
	KindInternal     Kind = iota
	KindBadRequest        // structural problem: missing field, wrong type
	KindValidation        // semantic problem: weak password, bad pattern
	KindUnauthorized      // missing or wrong credentials
	KindForbidden         // authenticated but not permitted
	KindNotFound
	KindConflict
	KindRateLimited
)

// Error is a failure the caller may show to the client.
type Error struct {
	Kind    Kind
	Message string
	Details []utils.FieldError
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string, details ...utils.FieldError) *Error {
	return &Error{Kind: kind, Message: msg, Details: details}
}

// KindOf returns the Kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

var (
	errUnauthorized   = newError(KindUnauthorized, "Unauthorized")
	errBadCredentials = newError(KindUnauthorized, "Invalid credentials")
	errInvalidRefresh = newError(KindUnauthorized, "Invalid refresh token")
	errMissingRefresh = newError(KindUnauthorized, "Missing refresh token")
	errTooManyLogins  = newError(KindRateLimited, "Too many login attempts, please try again later")
	errForbidden      = newError(KindForbidden, "Forbidden")
	errUserNotFound   = newError(KindNotFound, "User not found")
	errTenantNotFound = newError(KindNotFound, "Tenant not found")
)

func required(fields ...string) []utils.FieldError {
	out := make([]utils.FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, utils.FieldError{Field: f, Message: "is required"})
	}
	return out
}
