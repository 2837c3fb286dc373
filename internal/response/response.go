// Package response renders the JSON envelope shared by every endpoint:
// {status, message, data?, details?, result?}.
package response

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/utils"
)

type Envelope struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    any                `json:"data,omitempty"`
	Details []utils.FieldError `json:"details,omitempty"`
	Result  string             `json:"result,omitempty"`
}

// OK writes a successful envelope. data may be nil.
func OK(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, Envelope{Status: true, Message: message, Data: data})
}

// Fail writes a failed envelope with optional field details.
func Fail(c echo.Context, code int, message string, details ...utils.FieldError) error {
	return c.JSON(code, Envelope{Message: message, Details: details})
}

// Decision writes the answer to a broker hook. status is true only for an
// allow.
func Decision(c echo.Context, code int, message, result string, details ...utils.FieldError) error {
	return c.JSON(code, Envelope{
		Status:  result == "allow",
		Message: message,
		Details: details,
		Result:  result,
	})
}
