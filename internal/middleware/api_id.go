package middleware

import (
	"github.com/labstack/echo/v4"
)

// HeaderAPIID carries the persistent instance id
const HeaderAPIID = "X-Media-API-ID"

// APIIDMiddleware adds the X-Media-API-ID header to all responses
// This lets clients and caches tell service instances apart
func APIIDMiddleware(instanceID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderAPIID, instanceID)
			return next(c)
		}
	}
}
