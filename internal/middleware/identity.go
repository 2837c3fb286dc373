package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/utils"
)

const HeaderTenantSecret = "X-Tenant-Secret-Key"

// Context keys set by the guards.
const (
	ctxUserID       = "user_id"
	ctxTenantID     = "tenant_id"
	ctxRole         = "role"
	ctxClaims       = "claims"
	ctxTenantSecret = "tenant_secret"
	ctxRequestID    = "request_id"
)

// Claims returns the verified access token claims, or nil on routes that
// were not authenticated with a bearer token.
func Claims(c echo.Context) *utils.Claims {
	cl, _ := c.Get(ctxClaims).(*utils.Claims)
	return cl
}

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// HasTenantSecret reports whether the request proved the tenant secret.
func HasTenantSecret(c echo.Context) bool {
	ok, _ := c.Get(ctxTenantSecret).(bool)
	return ok
}

// RequestID returns the id assigned by the RequestID middleware.
func RequestID(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}

// subjectOrAnon names the caller for rate limit keys.
func subjectOrAnon(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
