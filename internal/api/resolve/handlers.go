package resolve

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/internal/api/common"
	"github.com/arcade-market/media-api/pkg/locator"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/resolver"
	"github.com/arcade-market/media-api/pkg/response"
)

// Resolver resolves raw asset locators
type Resolver interface {
	Resolve(ctx context.Context, raw string, opts resolver.Options) (resolver.Result, error)
}

// Handler handles resolution requests
type Handler struct {
	resolver Resolver
}

// NewHandler creates a new resolve handler
func NewHandler(r Resolver) *Handler {
	return &Handler{resolver: r}
}

// Resolve handles GET /resolve
func (h *Handler) Resolve(c echo.Context) error {
	var req common.ResolveRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid query parameters")
	}
	if err := c.Validate(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "src is required")
	}

	tokenID, err := locator.ParseTokenID(req.TokenID)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, err.Error())
	}

	res, err := h.resolver.Resolve(c.Request().Context(), req.Src, resolver.Options{
		TokenID: tokenID,
		Strict:  req.Strict,
	})
	if errors.Is(err, resolver.ErrMalformedInput) {
		return response.Fail(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		logging.Logger.Error("Resolution failed unexpectedly",
			zap.String("src", req.Src),
			zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "internal error")
	}

	if !res.Resolved() {
		return response.Fail(c, http.StatusBadGateway, "unable to resolve media")
	}

	return c.JSON(http.StatusOK, common.ResolveResponse{
		ImageURL:   res.URL,
		Strategy:   string(res.Strategy),
		BestEffort: res.BestEffort,
		Cached:     res.FromCache,
	})
}
