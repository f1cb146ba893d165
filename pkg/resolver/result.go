package resolver

import (
	"errors"
	"math/big"
	"time"
)

// ErrMalformedInput is returned for requests that cannot be resolved no matter what the network does
var ErrMalformedInput = errors.New("malformed input")

// Status is the terminal state of a resolution
type Status string

const (
	StatusResolved Status = "resolved"
	StatusFailed   Status = "failed"
)

// Strategy records which path through the engine produced the result
type Strategy string

const (
	StrategyInline    Strategy = "inline"
	StrategyDirect    Strategy = "direct"
	StrategyMetadata  Strategy = "metadata"
	StrategyDirectory Strategy = "directory"
)

// Options are the per-call resolution parameters. Zero values fall back to engine defaults.
type Options struct {
	TokenID            *big.Int
	MaxGatewayAttempts int
	PerAttemptTimeout  time.Duration
	// Strict turns exhaustion into a failure instead of a best-effort URL
	Strict bool
}

// Result is the outcome of a resolution. It is either Resolved with a URL or Failed.
type Result struct {
	Status      Status   `json:"status"`
	URL         string   `json:"url,omitempty"`
	FallbackURL string   `json:"fallbackUrl,omitempty"`
	Strategy    Strategy `json:"strategy,omitempty"`
	BestEffort  bool     `json:"bestEffort,omitempty"`
	Attempts    int      `json:"attempts"`
	FromCache   bool     `json:"fromCache,omitempty"`
}

// Resolved reports whether the result carries a usable URL
func (r Result) Resolved() bool {
	return r.Status == StatusResolved
}

// withMode applies the caller's strictness to a mode-independent result
func (r Result) withMode(strict bool) Result {
	if strict || r.Status != StatusFailed || r.FallbackURL == "" {
		return r
	}
	r.Status = StatusResolved
	r.URL = r.FallbackURL
	r.BestEffort = true
	return r
}
