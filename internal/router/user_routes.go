package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
	"github.com/iliyamo/iot-auth-service/internal/model"
)

// RegisterUsers registers /users for the signed-in account, plus the
// admin-only ban switch.
func RegisterUsers(e *echo.Echo, d Deps) {
	g := e.Group("/users", middleware.JWTAuth(d.Authenticator))

	g.GET("", d.Users.Me)
	g.PUT("", d.Users.Update)
	g.DELETE("", d.Users.Delete)
	g.GET("/all", d.Users.List)
	g.GET("/details", d.Users.GetDetails)
	g.PUT("/details", d.Users.UpdateDetails)

	g.PATCH("/:id/ban", d.Users.Ban, middleware.RequireRole(model.RoleAdmin))
}
