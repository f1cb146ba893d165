package gateway

import (
	"sync"
	"time"

	"github.com/arcade-market/media-api/pkg/metrics"
)

// BreakerState is the state of a mirror's breaker
type BreakerState int

const (
	// BreakerClosed lets probes through
	BreakerClosed BreakerState = iota
	// BreakerOpen marks the mirror as unhealthy; it is ordered last under the health policy
	BreakerOpen
	// BreakerHalfOpen lets probes through until the mirror proves itself again
	BreakerHalfOpen
)

// String returns the string representation of the state
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// HealthConfig configures the mirror health tracker
type HealthConfig struct {
	// FailureThreshold is the number of consecutive network failures before the breaker opens
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in half-open state before closing
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays open before going half-open
	OpenTimeout time.Duration
	// DecayInterval halves the success/failure counters once per interval
	DecayInterval time.Duration
}

// DefaultHealthConfig returns the default tracker configuration
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
		DecayInterval:    5 * time.Minute,
	}
}

// MirrorHealth is a snapshot of one mirror's health
type MirrorHealth struct {
	Mirror         string    `json:"mirror"`
	State          string    `json:"state"`
	Successes      float64   `json:"successes"`
	Failures       float64   `json:"failures"`
	FailureRatio   float64   `json:"failureRatio"`
	LastFailure    time.Time `json:"lastFailure"`
	LastSuccess    time.Time `json:"lastSuccess"`
	ConsecutiveErr int       `json:"consecutiveFailures"`
}

type mirrorHealth struct {
	state          BreakerState
	successes      float64
	failures       float64
	consecutiveErr int
	consecutiveOK  int
	lastFailure    time.Time
	lastSuccess    time.Time
	lastDecay      time.Time
	openedAt       time.Time
}

// HealthTracker keeps process-wide per-mirror success/failure counters and a breaker per mirror.
// Counters decay so old outages stop counting against a mirror.
type HealthTracker struct {
	mu      sync.Mutex
	config  HealthConfig
	mirrors map[string]*mirrorHealth
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHealthTracker creates a tracker; zero config values fall back to defaults
func NewHealthTracker(config HealthConfig, m *metrics.Metrics) *HealthTracker {
	defaults := DefaultHealthConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaults.OpenTimeout
	}
	if config.DecayInterval <= 0 {
		config.DecayInterval = defaults.DecayInterval
	}

	return &HealthTracker{
		config:  config,
		mirrors: make(map[string]*mirrorHealth),
		metrics: m,
		now:     time.Now,
	}
}

// RecordSuccess records a probe that reached the mirror and got an answer
func (h *HealthTracker) RecordSuccess(mirror string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	mh := h.get(mirror)
	mh.successes++
	mh.consecutiveErr = 0
	mh.lastSuccess = h.now()

	if mh.state == BreakerHalfOpen {
		mh.consecutiveOK++
		if mh.consecutiveOK >= h.config.SuccessThreshold {
			h.transition(mirror, mh, BreakerClosed)
		}
	}
}

// RecordFailure records a network error or timeout against the mirror
func (h *HealthTracker) RecordFailure(mirror string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	mh := h.get(mirror)
	mh.failures++
	mh.consecutiveErr++
	mh.consecutiveOK = 0
	mh.lastFailure = h.now()

	switch mh.state {
	case BreakerClosed:
		if mh.consecutiveErr >= h.config.FailureThreshold {
			h.transition(mirror, mh, BreakerOpen)
		}
	case BreakerHalfOpen:
		// Any failure in half-open state immediately opens the breaker again
		h.transition(mirror, mh, BreakerOpen)
	case BreakerOpen:
		mh.openedAt = h.now()
	}
}

// State returns the breaker state of a mirror, moving open breakers to half-open once their timeout passed
func (h *HealthTracker) State(mirror string) BreakerState {
	if h == nil {
		return BreakerClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.get(mirror).state
}

// FailureRatio returns the decayed failure ratio of a mirror in [0, 1)
func (h *HealthTracker) FailureRatio(mirror string) float64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	mh := h.get(mirror)
	return ratio(mh)
}

// Reset forgets everything known about a mirror
func (h *HealthTracker) Reset(mirror string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.mirrors, mirror)
	h.metrics.SetBreakerState(mirror, int(BreakerClosed))
}

// Snapshot returns the health of the given mirrors in the given order
func (h *HealthTracker) Snapshot(names []string) []MirrorHealth {
	out := make([]MirrorHealth, 0, len(names))
	if h == nil {
		for _, name := range names {
			out = append(out, MirrorHealth{Mirror: name, State: BreakerClosed.String()})
		}
		return out
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range names {
		mh := h.get(name)
		out = append(out, MirrorHealth{
			Mirror:         name,
			State:          mh.state.String(),
			Successes:      mh.successes,
			Failures:       mh.failures,
			FailureRatio:   ratio(mh),
			LastFailure:    mh.lastFailure,
			LastSuccess:    mh.lastSuccess,
			ConsecutiveErr: mh.consecutiveErr,
		})
	}
	return out
}

// get returns the entry for a mirror with decay and open timeout applied. Callers hold h.mu.
func (h *HealthTracker) get(mirror string) *mirrorHealth {
	now := h.now()
	mh, ok := h.mirrors[mirror]
	if !ok {
		mh = &mirrorHealth{state: BreakerClosed, lastDecay: now}
		h.mirrors[mirror] = mh
		return mh
	}

	for now.Sub(mh.lastDecay) >= h.config.DecayInterval {
		mh.successes /= 2
		mh.failures /= 2
		mh.lastDecay = mh.lastDecay.Add(h.config.DecayInterval)
	}

	if mh.state == BreakerOpen && now.Sub(mh.openedAt) >= h.config.OpenTimeout {
		h.transition(mirror, mh, BreakerHalfOpen)
	}
	return mh
}

func (h *HealthTracker) transition(mirror string, mh *mirrorHealth, to BreakerState) {
	if mh.state == to {
		return
	}
	mh.state = to
	mh.consecutiveOK = 0
	if to == BreakerOpen {
		mh.openedAt = h.now()
	}
	if to == BreakerClosed {
		mh.consecutiveErr = 0
	}
	h.metrics.SetBreakerState(mirror, int(to))
}

func ratio(mh *mirrorHealth) float64 {
	return mh.failures / (mh.successes + mh.failures + 1)
}
