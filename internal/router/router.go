// Package router assembles the echo instance: shared middleware, the error
// handler and one Register function per resource group.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/handler"
	"github.com/iliyamo/iot-auth-service/internal/middleware"
)

// Deps is everything the routes need.
type Deps struct {
	Auth    *handler.AuthHandler
	Tenants *handler.TenantHandler
	Users   *handler.UserHandler
	MQTT    *handler.MQTTHandler

	Authenticator middleware.Authenticator
	APIKey        string
	TenantSecret  string
	// RequestBucket throttles the credential endpoints; nil disables it.
	RequestBucket  echo.MiddlewareFunc
	AllowedOrigins []string
	Ready          map[string]handler.Pinger
	Log            *zap.Logger
}

func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(
		middleware.RequestIDMiddleware(),
		middleware.AccessLog(d.Log),
		middleware.Recover(d.Log),
		echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.AllowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders: []string{
				echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID,
				"X-API-Key", middleware.HeaderTenantSecret,
			},
		}),
	)

	RegisterRoutes(e, d.Ready)
	RegisterAuth(e, d)
	RegisterTenants(e, d)
	RegisterUsers(e, d)
	RegisterMQTT(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
}

func bucket(d Deps) []echo.MiddlewareFunc {
	if d.RequestBucket == nil {
		return nil
	}
	return []echo.MiddlewareFunc{d.RequestBucket}
}
