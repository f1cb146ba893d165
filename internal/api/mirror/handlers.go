package mirror

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/internal/api/common"
	"github.com/arcade-market/media-api/internal/middleware"
	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/response"
)

// Handler exposes mirror configuration and health to operators
type Handler struct {
	registry *gateway.Registry
}

// NewHandler creates a new mirror handler
func NewHandler(registry *gateway.Registry) *Handler {
	return &Handler{registry: registry}
}

// ListMirrors handles GET /mirrors.
// Mirrors are returned in the order the current policy would try them.
func (h *Handler) ListMirrors(c echo.Context) error {
	mirrors := h.registry.Mirrors()

	names := make([]string, 0, len(mirrors))
	for _, m := range mirrors {
		names = append(names, m.Name)
	}
	health := h.registry.Health().Snapshot(names)

	out := make([]common.MirrorResponse, 0, len(mirrors))
	for i, m := range mirrors {
		out = append(out, common.MirrorResponse{
			MirrorConfig: m.Config(),
			Health:       health[i],
		})
	}

	return response.OK(c, string(h.registry.Policy()), out)
}

// ResetMirror handles POST /mirrors/:name/reset
func (h *Handler) ResetMirror(c echo.Context) error {
	name := c.Param("name")
	if _, ok := h.registry.Mirror(name); !ok {
		return response.NotFound(c, "Mirror not found: "+name)
	}

	h.registry.Health().Reset(name)

	actor := ""
	if user, ok := middleware.GetUserFromContext(c); ok {
		actor = user.Name
	}
	logging.Logger.Info("Mirror health reset",
		zap.String("mirror", name),
		zap.String("reset_by", actor))

	return response.OK(c, "Mirror health reset", h.registry.Health().Snapshot([]string{name})[0])
}
