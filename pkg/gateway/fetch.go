package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/arcade-market/media-api/pkg/logging"
	"go.uber.org/zap"
)

// ErrUpstreamExhausted is returned when every candidate failed
var ErrUpstreamExhausted = errors.New("all upstream candidates failed")

// Upstream is an open response from the candidate that answered first
type Upstream struct {
	*http.Response
	Candidate Candidate

	cancel context.CancelFunc
}

// Close releases the body and the attempt context
func (u *Upstream) Close() error {
	err := u.Body.Close()
	u.cancel()
	return err
}

// Fetcher performs full GETs with mirror failover, for streaming content to clients
type Fetcher struct {
	client *http.Client
	health *HealthTracker
}

// NewFetcher creates a failover fetcher
func NewFetcher(client *http.Client, health *HealthTracker) *Fetcher {
	if client == nil {
		client = NewHTTPClient(ClientConfig{})
	}
	return &Fetcher{client: client, health: health}
}

// Open tries candidates in order and returns the first 2xx response.
// headerTimeout bounds each attempt until response headers arrive; the body is bounded by ctx.
// maxAttempts <= 0 means no cap.
func (f *Fetcher) Open(ctx context.Context, candidates iter.Seq[Candidate], headerTimeout time.Duration, maxAttempts int) (*Upstream, error) {
	attempts := 0
	var lastErr error

	for c := range candidates {
		if maxAttempts > 0 && attempts >= maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attempts++

		up, err := f.open(ctx, c, headerTimeout)
		if err == nil {
			logging.Logger.Debug("Upstream opened",
				zap.String("url", c.URL),
				zap.String("mirror", c.MirrorName()),
				zap.Int("attempt", attempts))
			return up, nil
		}
		lastErr = err

		logging.Logger.Debug("Upstream attempt failed, trying next candidate",
			zap.String("url", c.URL),
			zap.String("mirror", c.MirrorName()),
			zap.Error(err))
	}

	if lastErr == nil {
		return nil, ErrUpstreamExhausted
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamExhausted, lastErr)
}

func (f *Fetcher) open(ctx context.Context, c Candidate, headerTimeout time.Duration) (*Upstream, error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	var timer *time.Timer
	if headerTimeout > 0 {
		timer = time.AfterFunc(headerTimeout, cancel)
	}
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	if err := c.Mirror.Wait(attemptCtx); err != nil {
		stop()
		cancel()
		f.fail(c)
		return nil, fmt.Errorf("limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.URL, nil)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		stop()
		cancel()
		f.fail(c)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		stop()
		resp.Body.Close()
		cancel()
		if MirrorFault(resp.StatusCode) {
			f.fail(c)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Headers arrived in time; from here on only ctx bounds the body
	if timer != nil && !timer.Stop() {
		resp.Body.Close()
		cancel()
		f.fail(c)
		return nil, context.DeadlineExceeded
	}
	if c.Mirror != nil {
		f.health.RecordSuccess(c.Mirror.Name)
	}

	return &Upstream{Response: resp, Candidate: c, cancel: cancel}, nil
}

func (f *Fetcher) fail(c Candidate) {
	if c.Mirror != nil {
		f.health.RecordFailure(c.Mirror.Name)
	}
}
