package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
)

// RegisterMQTT registers the broker hook surface. It uses the service API
// key only, never a user session.
func RegisterMQTT(e *echo.Echo, d Deps) {
	g := e.Group("/mqtt", middleware.APIKey(d.APIKey))

	g.POST("/create", d.MQTT.Create)
	g.POST("/check", d.MQTT.Check)
	g.POST("/acl", d.MQTT.ACL)
	g.GET("", d.MQTT.List)
	g.DELETE("/:username", d.MQTT.Delete)
}
