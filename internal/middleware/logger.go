package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLog writes one line per request. Query strings are left out since
// SSO parameters travel there.
func AccessLog(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the status we log
				c.Error(err)
			}

			status := c.Response().Status
			lvl := zapcore.InfoLevel
			switch {
			case status >= http.StatusInternalServerError:
				lvl = zapcore.ErrorLevel
			case status >= http.StatusBadRequest:
				lvl = zapcore.WarnLevel
			}
			log.Check(lvl, "request").Write(
				zap.String("request_id", RequestID(c)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("route", c.Path()),
				zap.Int("status", status),
				zap.Int64("bytes", c.Response().Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic",
						zap.String("request_id", RequestID(c)),
						zap.String("path", c.Request().URL.Path),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(c)
		}
	}
}
