package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
)

// RegisterTenants registers /tenants. Creation takes either the tenant
// secret or a bearer token; everything else needs a bearer token.
func RegisterTenants(e *echo.Echo, d Deps) {
	bearer := middleware.BearerGuard(d.Authenticator)

	e.POST("/tenants", d.Tenants.Create,
		middleware.Require(middleware.TenantSecretGuard(d.TenantSecret), bearer))

	g := e.Group("/tenants", middleware.Require(bearer))
	g.GET("", d.Tenants.List)
	g.GET("/:id", d.Tenants.Get)
	g.PUT("/:id", d.Tenants.Update)
	g.DELETE("/:id", d.Tenants.Delete)
}
