package media

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/internal/api/common"
	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/locator"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/metrics"
	"github.com/arcade-market/media-api/pkg/resolver"
	"github.com/arcade-market/media-api/pkg/response"
)

const immutableCacheControl = "public, max-age=31536000, immutable"

// Resolver resolves raw asset locators
type Resolver interface {
	Resolve(ctx context.Context, raw string, opts resolver.Options) (resolver.Result, error)
}

// CandidateSource expands a locator into mirror candidates
type CandidateSource interface {
	Candidates(l locator.AssetLocator) iter.Seq[gateway.Candidate]
}

// Opener opens the first candidate that answers with content
type Opener interface {
	Open(ctx context.Context, candidates iter.Seq[gateway.Candidate], headerTimeout time.Duration, maxAttempts int) (*gateway.Upstream, error)
}

// Config bounds streaming
type Config struct {
	HeaderTimeout time.Duration
	StreamTimeout time.Duration
	MaxAttempts   int
}

// Handler streams media to clients that need same-origin delivery
type Handler struct {
	resolver   Resolver
	candidates CandidateSource
	opener     Opener
	metrics    *metrics.Metrics
	config     Config
}

// NewHandler creates a new media handler
func NewHandler(r Resolver, candidates CandidateSource, opener Opener, m *metrics.Metrics, config Config) *Handler {
	return &Handler{
		resolver:   r,
		candidates: candidates,
		opener:     opener,
		metrics:    m,
		config:     config,
	}
}

// Image handles GET /image: resolve then stream the resolved content
func (h *Handler) Image(c echo.Context) error {
	var req common.ImageRequest
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

	res, err := h.resolver.Resolve(c.Request().Context(), req.Src, resolver.Options{TokenID: tokenID})
	if errors.Is(err, resolver.ErrMalformedInput) {
		return response.Fail(c, http.StatusBadRequest, err.Error())
	}
	if err != nil || !res.Resolved() {
		h.metrics.ObserveStream("image", "unresolved")
		return response.Fail(c, http.StatusBadGateway, "unable to resolve media")
	}

	target := locator.Normalize(res.URL)
	if target.IsDataURI() {
		return h.inline(c, target.Path)
	}
	return h.stream(c, "image", target)
}

// Content handles GET /ipfs/:cid/*: mirror failover only, no templates or metadata
func (h *Handler) Content(c echo.Context) error {
	cid := c.Param("cid")
	if !locator.IsCID(cid) {
		return response.Fail(c, http.StatusBadRequest, "invalid content identifier")
	}

	// The escaped form goes to the mirror as is; '#', '?' and '%' in file
	// names must stay encoded.
	path := cid
	escaped := strings.TrimPrefix(c.Request().URL.EscapedPath(), "/ipfs/")
	if _, rest, ok := strings.Cut(escaped, "/"); ok {
		if rest = strings.TrimLeft(rest, "/"); rest != "" {
			path += "/" + rest
		}
	}

	return h.stream(c, "content", locator.Normalize("ipfs://"+path))
}

func (h *Handler) stream(c echo.Context, endpoint string, target locator.AssetLocator) error {
	ctx := c.Request().Context()
	if h.config.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.StreamTimeout)
		defer cancel()
	}

	up, err := h.opener.Open(ctx, h.candidates.Candidates(target), h.config.HeaderTimeout, h.config.MaxAttempts)
	if err != nil {
		logging.Logger.Info("No upstream could serve content",
			zap.String("endpoint", endpoint),
			zap.String("locator", target.String()),
			zap.Error(err))
		h.metrics.ObserveStream(endpoint, "exhausted")
		return response.Fail(c, http.StatusBadGateway, "upstream unavailable")
	}
	defer up.Close()

	contentType := up.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	header := c.Response().Header()
	header.Set(echo.HeaderCacheControl, immutableCacheControl)
	header.Set(echo.HeaderAccessControlAllowOrigin, "*")
	if up.ContentLength >= 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(up.ContentLength, 10))
	}

	h.metrics.ObserveStream(endpoint, "ok")
	if err := c.Stream(http.StatusOK, contentType, up.Body); err != nil && !errors.Is(err, context.Canceled) {
		// Headers are already sent; the client just sees a truncated body
		logging.Logger.Debug("Stream interrupted",
			zap.String("mirror", up.Candidate.MirrorName()),
			zap.Error(err))
	}
	return nil
}

// inline serves a data: URI resolved from metadata
func (h *Handler) inline(c echo.Context, dataURI string) error {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(dataURI, "data:"), ",")
	if !ok {
		return response.Fail(c, http.StatusBadGateway, "malformed inline media")
	}

	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "text/plain;charset=US-ASCII"
	}

	var body []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return response.Fail(c, http.StatusBadGateway, "malformed inline media")
		}
		body = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return response.Fail(c, http.StatusBadGateway, "malformed inline media")
		}
		body = []byte(unescaped)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderCacheControl, immutableCacheControl)
	header.Set(echo.HeaderAccessControlAllowOrigin, "*")
	h.metrics.ObserveStream("image", "inline")
	return c.Blob(http.StatusOK, contentType, body)
}
