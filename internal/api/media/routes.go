package media

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the resolve-and-stream route on the API group
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("/image", handler.Image)
}

// RegisterContentRoutes registers the mirror failover routes at the root
func RegisterContentRoutes(e *echo.Echo, handler *Handler) {
	e.GET("/ipfs/:cid", handler.Content)
	e.GET("/ipfs/:cid/*", handler.Content)
}
