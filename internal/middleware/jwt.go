package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/service"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

// Authenticator verifies an access token and that its subject may still
// act. *service.TokenService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*utils.Claims, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c echo.Context) string {
	h := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// BearerGuard accepts a valid access token of an active account and stores
// its claims for handlers.
func BearerGuard(auth Authenticator) Guard {
	return func(c echo.Context) error {
		raw := BearerToken(c)
		if raw == "" {
			return ErrMissingToken
		}
		claims, err := auth.Authenticate(c.Request().Context(), raw)
		if err != nil {
			if service.KindOf(err) == service.KindUnauthorized {
				return ErrUnauthorized
			}
			return err
		}
		c.Set(ctxClaims, claims)
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxTenantID, claims.TenantID)
		c.Set(ctxRole, claims.Role)
		return nil
	}
}

// JWTAuth guards routes that need a signed-in user.
func JWTAuth(auth Authenticator) echo.MiddlewareFunc { return Require(BearerGuard(auth)) }
