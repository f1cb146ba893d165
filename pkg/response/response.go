// Package response writes the JSON bodies of the API.
// Public media endpoints answer errors with a bare {"error": "..."} object so browsers and
// marketplaces can consume them directly; operator endpoints wrap everything in an Envelope.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every operator endpoint
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Problem is the error body of the public endpoints
type Problem struct {
	Error string `json:"error"`
}

// Fail sends a public error
func Fail(c echo.Context, code int, message string) error {
	return c.JSON(code, Problem{Error: message})
}

// OK sends a successful operator response
func OK(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends an operator error response
func Error(c echo.Context, code int, message string) error {
	return c.JSON(code, Envelope{
		Success: false,
		Error:   message,
	})
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(c echo.Context, message string) error {
	return Error(c, http.StatusUnauthorized, message)
}

// Forbidden sends a 403 Forbidden response
func Forbidden(c echo.Context, message string) error {
	return Error(c, http.StatusForbidden, message)
}

// NotFound sends a 404 Not Found response
func NotFound(c echo.Context, message string) error {
	return Error(c, http.StatusNotFound, message)
}
