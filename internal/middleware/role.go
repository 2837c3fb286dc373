package middleware

import "github.com/labstack/echo/v4"

// RequireRole lets the request through only when JWTAuth stored one of
// roles for it.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRole).(string)
			if !ok || !allowed[role] {
				return ErrForbidden
			}
			return next(c)
		}
	}
}
