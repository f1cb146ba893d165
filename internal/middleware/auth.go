package middleware

import (
	"github.com/labstack/echo/v4"

	authpkg "github.com/arcade-market/media-api/pkg/auth"
	"github.com/arcade-market/media-api/pkg/config"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/response"
)

// User represents the holder of an API key
type User struct {
	Name string       `json:"name"`
	Role authpkg.Role `json:"role"`
}

// APIKeyMiddleware validates the X-API-Key header against the configured keys
func APIKeyMiddleware(apiKeys []config.APIKey) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get("X-API-Key")
			if apiKey == "" {
				logging.LogDenied("missing_key", "", c.Path(), c.RealIP())
				return response.Unauthorized(c, "API key required")
			}

			keyData, found := config.FindAPIKeyByKey(apiKeys, apiKey)
			if !found {
				logging.LogDenied("invalid_key", "", c.Path(), c.RealIP())
				return response.Unauthorized(c, "Invalid API key")
			}

			c.Set("user", &User{
				Name: keyData.Name,
				Role: authpkg.ParseRole(keyData.Role),
			})
			return next(c)
		}
	}
}

// RequireRole middleware checks if user has sufficient role permissions
func RequireRole(requiredRole authpkg.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := GetUserFromContext(c)
			if !ok {
				return response.Unauthorized(c, "User not authenticated")
			}

			if !user.Role.HasPermission(requiredRole) {
				logging.LogDenied("insufficient_role", user.Name, c.Path(), c.RealIP())
				return response.Forbidden(c, "Insufficient permissions. Required: "+requiredRole.String())
			}

			return next(c)
		}
	}
}

// GetUserFromContext extracts user from Echo context
func GetUserFromContext(c echo.Context) (*User, bool) {
	user, ok := c.Get("user").(*User)
	return user, ok && user != nil
}
