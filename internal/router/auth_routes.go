package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
)

// RegisterAuth registers /auth. Register and login need the service API
// key; refresh and logout work from the cookie alone.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/auth")

	keyed := append(bucket(d), middleware.APIKey(d.APIKey))
	g.POST("/register", d.Auth.Register, append(keyed, middleware.Optional(middleware.TenantSecretGuard(d.TenantSecret)))...)
	g.POST("/login", d.Auth.Login, keyed...)

	g.POST("/refresh", d.Auth.Refresh, bucket(d)...)
	g.POST("/logout", d.Auth.Logout)
	g.GET("/verify", d.Auth.Verify, middleware.JWTAuth(d.Authenticator))
}
