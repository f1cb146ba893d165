package gateway

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/metrics"
	"go.uber.org/zap"
)

// Classification is what a probe found at a URL
type Classification string

const (
	// ClassImage is directly displayable media
	ClassImage Classification = "image"
	// ClassJSONDocument is a metadata layer to follow
	ClassJSONDocument Classification = "jsonDocument"
	// ClassUnusable answered, but with nothing we can use
	ClassUnusable Classification = "unusable"
	// ClassNetworkError did not answer in time; try the next candidate
	ClassNetworkError Classification = "networkError"
)

// DefaultProbeBytes is the size of the partial-content window requested by a probe
const DefaultProbeBytes = 1024

// maxDrain bounds how much of a probe body is read before the connection is released
const maxDrain = 64 << 10

// ProbeResult is the outcome of a single network attempt
type ProbeResult struct {
	Classification Classification
	URL            string // requested URL
	FinalURL       string // URL after redirects
	ContentType    string
	StatusCode     int
	Mirror         string
	Duration       time.Duration
}

// OK reports whether the probe found something worth following
func (r ProbeResult) OK() bool {
	return r.Classification == ClassImage || r.Classification == ClassJSONDocument
}

// Prober issues bounded partial-content GETs and classifies the answer.
// It is stateless apart from health and metrics bookkeeping and safe for concurrent use.
type Prober struct {
	client     *http.Client
	rangeBytes int
	health     *HealthTracker
	metrics    *metrics.Metrics
}

// NewProber creates a prober; health and metrics may be nil
func NewProber(client *http.Client, rangeBytes int, health *HealthTracker, m *metrics.Metrics) *Prober {
	if client == nil {
		client = NewHTTPClient(ClientConfig{})
	}
	if rangeBytes <= 0 {
		rangeBytes = DefaultProbeBytes
	}
	return &Prober{
		client:     client,
		rangeBytes: rangeBytes,
		health:     health,
		metrics:    m,
	}
}

// Probe fetches the first bytes of a candidate within timeout and classifies the response.
// It never returns an error: transport failures and timeouts come back as ClassNetworkError.
// GET with a Range header is used instead of HEAD because many mirrors mishandle or block HEAD.
func (p *Prober) Probe(ctx context.Context, c Candidate, timeout time.Duration) ProbeResult {
	start := time.Now()
	result := ProbeResult{URL: c.URL, FinalURL: c.URL, Mirror: c.MirrorName()}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result.Classification, result.StatusCode, result.ContentType, result.FinalURL = p.do(ctx, c)
	result.Duration = time.Since(start)

	p.record(c, result)
	return result
}

func (p *Prober) do(ctx context.Context, c Candidate) (Classification, int, string, string) {
	if err := c.Mirror.Wait(ctx); err != nil {
		logging.Logger.Debug("Mirror limiter wait exceeded probe deadline",
			zap.String("mirror", c.MirrorName()),
			zap.Error(err))
		return ClassNetworkError, 0, "", c.URL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		// A URL the client cannot even build will not get better on another attempt
		return ClassUnusable, 0, "", c.URL
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.rangeBytes-1))
	req.Header.Set("Accept", "image/*, application/json;q=0.9, */*;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		return ClassNetworkError, 0, "", c.URL
	}
	defer resp.Body.Close()
	// Mirrors ignoring Range send the whole file; drain a little for connection reuse and drop the rest
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)

	finalURL := c.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	contentType := resp.Header.Get("Content-Type")

	return Classify(resp.StatusCode, contentType), resp.StatusCode, contentType, finalURL
}

// Classify maps a status code and Content-Type to a probe classification
func Classify(status int, contentType string) Classification {
	if status < 200 || status > 299 {
		return ClassUnusable
	}

	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return ClassImage
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return ClassJSONDocument
	}
	return ClassUnusable
}

// MirrorFault reports whether a status code blames the mirror rather than the content
func MirrorFault(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (p *Prober) record(c Candidate, r ProbeResult) {
	p.metrics.ObserveProbe(r.Mirror, string(r.Classification), r.Duration)

	if c.Mirror != nil {
		if r.Classification == ClassNetworkError || MirrorFault(r.StatusCode) {
			p.health.RecordFailure(c.Mirror.Name)
		} else {
			p.health.RecordSuccess(c.Mirror.Name)
		}
	}

	logging.Logger.Debug("Probed candidate",
		zap.String("url", r.URL),
		zap.String("mirror", r.Mirror),
		zap.String("classification", string(r.Classification)),
		zap.Int("status", r.StatusCode),
		zap.String("content_type", r.ContentType),
		zap.Duration("duration", r.Duration))
}
