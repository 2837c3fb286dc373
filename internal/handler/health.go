package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/response"
)

// Pinger is a dependency that readiness waits on. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Health reports that the process is up. It checks nothing else.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready checks every named dependency and answers 503 when one fails.
func Ready(deps map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		ready := true
		for name, p := range deps {
			if err := p.PingContext(ctx); err != nil {
				checks[name] = "unavailable"
				ready = false
				continue
			}
			checks[name] = "ok"
		}
		if !ready {
			return c.JSON(http.StatusServiceUnavailable, response.Envelope{Message: "Not ready", Data: checks})
		}
		return response.OK(c, http.StatusOK, "Ready", checks)
	}
}
