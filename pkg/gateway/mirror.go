package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultPathPrefix is the indirection segment mirrors serve content-addressed paths under
const DefaultPathPrefix = "/ipfs/"

// MirrorConfig is the operator-facing description of a mirror
type MirrorConfig struct {
	Name       string  `yaml:"name" json:"name"`
	BaseURL    string  `yaml:"base_url" json:"baseUrl"`
	PathPrefix string  `yaml:"path_prefix,omitempty" json:"pathPrefix,omitempty"`
	RateLimit  float64 `yaml:"rate_limit,omitempty" json:"rateLimit,omitempty"` // requests per second, 0 = unlimited
	Burst      int     `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// DefaultMirrors is the static priority list, ordered by observed reliability.
// cloudflare-ipfs.com is kept last so it is only reached as a last resort.
func DefaultMirrors() []MirrorConfig {
	return []MirrorConfig{
		{Name: "ipfs.io", BaseURL: "https://ipfs.io"},
		{Name: "dweb.link", BaseURL: "https://dweb.link"},
		{Name: "pinata", BaseURL: "https://gateway.pinata.cloud", RateLimit: 3, Burst: 3},
		{Name: "nftstorage", BaseURL: "https://nftstorage.link"},
		{Name: "cloudflare", BaseURL: "https://cloudflare-ipfs.com"},
	}
}

// Mirror is a configured gateway with its own politeness limiter
type Mirror struct {
	Name       string
	BaseURL    string
	PathPrefix string

	limiter *rate.Limiter
}

// NewMirror validates a mirror config and builds its limiter
func NewMirror(cfg MirrorConfig) (*Mirror, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL for mirror %q: %w", cfg.Name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL for mirror %q: scheme must be http or https", cfg.Name)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL for mirror %q: missing host", cfg.Name)
	}

	name := cfg.Name
	if name == "" {
		name = u.Host
	}

	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = DefaultPathPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	m := &Mirror{
		Name:       name,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		PathPrefix: prefix,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return m, nil
}

// URL builds the mirror URL for a content-addressed path
func (m *Mirror) URL(path string) string {
	return m.BaseURL + m.PathPrefix + strings.TrimLeft(path, "/")
}

// Wait blocks until the mirror's limiter allows another request or ctx is done
func (m *Mirror) Wait(ctx context.Context) error {
	if m == nil || m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

// Config returns the operator-facing description of the mirror
func (m *Mirror) Config() MirrorConfig {
	cfg := MirrorConfig{Name: m.Name, BaseURL: m.BaseURL, PathPrefix: m.PathPrefix}
	if m.limiter != nil {
		cfg.RateLimit = float64(m.limiter.Limit())
		cfg.Burst = m.limiter.Burst()
	}
	return cfg
}
