package resolve

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers resolve routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("/resolve", handler.Resolve)
}
