package mirror

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers mirror administration routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("", handler.ListMirrors)
	g.POST("/:name/reset", handler.ResetMirror)
}
