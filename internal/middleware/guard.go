package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Guard checks one credential class on a request. It returns nil when the
// request carries that capability and may record identity on the context.
type Guard func(c echo.Context) error

var (
	ErrMissingAPIKey = echo.NewHTTPError(http.StatusUnauthorized, "Missing API Key")
	ErrMissingToken  = echo.NewHTTPError(http.StatusUnauthorized, "Missing authentication token")
	ErrUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	ErrForbidden     = echo.NewHTTPError(http.StatusForbidden, "Forbidden")
)

func isMissing(err error) bool {
	return errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrMissingToken)
}

// AnyOf passes when one of guards passes. On failure it reports the error of
// a credential that was presented and rejected, falling back to the first
// guard's error.
func AnyOf(guards ...Guard) Guard {
	return func(c echo.Context) error {
		var first error
		for _, g := range guards {
			err := g(c)
			if err == nil {
				return nil
			}
			if first == nil || (isMissing(first) && !isMissing(err)) {
				first = err
			}
		}
		return first
	}
}

// Require turns guards into middleware; the request proceeds when any of
// them passes.
func Require(guards ...Guard) echo.MiddlewareFunc {
	g := AnyOf(guards...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// APIKeyGuard accepts the service key in X-API-Key, or in Authorization
// either bare or after "Bearer ".
func APIKeyGuard(key string) Guard {
	want := []byte(key)
	return func(c echo.Context) error {
		h := c.Request().Header
		got := strings.TrimSpace(h.Get("X-API-Key"))
		if got == "" {
			got = strings.TrimSpace(h.Get(echo.HeaderAuthorization))
			if len(got) > 7 && strings.EqualFold(got[:7], "bearer ") {
				got = strings.TrimSpace(got[7:])
			}
		}
		if got == "" {
			return ErrMissingAPIKey
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return ErrUnauthorized
		}
		return nil
	}
}

// TenantSecretGuard accepts the tenant bootstrap secret in
// X-Tenant-Secret-Key and marks the request as holding it.
func TenantSecretGuard(secret string) Guard {
	want := []byte(secret)
	return func(c echo.Context) error {
		got := strings.TrimSpace(c.Request().Header.Get(HeaderTenantSecret))
		if got == "" {
			return ErrMissingToken
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return ErrUnauthorized
		}
		c.Set(ctxTenantSecret, true)
		return nil
	}
}

// APIKey guards the service-to-service routes.
func APIKey(key string) echo.MiddlewareFunc { return Require(APIKeyGuard(key)) }

// Optional runs g for what it records on the context and never rejects the
// request.
func Optional(g Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_ = g(c)
			return next(c)
		}
	}
}
