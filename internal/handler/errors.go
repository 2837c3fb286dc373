package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
	"github.com/iliyamo/iot-auth-service/internal/response"
	"github.com/iliyamo/iot-auth-service/internal/service"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

const defaultTimeout = 5 * time.Second

// StatusOf maps a service error kind to its HTTP status.
func StatusOf(kind service.Kind) int {
	switch kind {
	case service.KindBadRequest:
		return http.StatusBadRequest
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// envelopeFor turns any handler error into a status and envelope. Details
// of unexpected errors never reach the client.
func envelopeFor(err error) (int, response.Envelope) {
	var se *service.Error
	if errors.As(err, &se) {
		return StatusOf(se.Kind), response.Envelope{Message: se.Message, Details: se.Details}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok || he.Code >= http.StatusInternalServerError {
			msg = http.StatusText(he.Code)
		}
		return he.Code, response.Envelope{Message: msg}
	}
	return http.StatusInternalServerError, response.Envelope{Message: "Internal server error"}
}

// ErrorHandler renders every error, including router 404/405s, as the
// JSON envelope and logs server-side failures.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := envelopeFor(err)
		if code >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", middleware.RequestID(c)),
				zap.String("route", c.Path()),
				zap.Error(err),
			)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Warn("write error response failed", zap.Error(err))
		}
	}
}

// bind decodes the request body. A JSON type mismatch is reported with the
// offending field.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &service.Error{
				Kind:    service.KindBadRequest,
				Message: "Invalid data type",
				Details: []utils.FieldError{{Field: typeErr.Field, Message: "has the wrong type"}},
			}
		}
		return &service.Error{Kind: service.KindBadRequest, Message: "Invalid input data"}
	}
	return nil
}

func requestContext(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}
