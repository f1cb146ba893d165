package gateway

import (
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/arcade-market/media-api/pkg/locator"
)

// Policy decides the order mirrors are tried in
type Policy string

const (
	// PolicyStatic tries mirrors in configuration order
	PolicyStatic Policy = "static"
	// PolicyHealth pushes mirrors with an open breaker to the end and prefers low failure ratios
	PolicyHealth Policy = "health"
)

// ParsePolicy validates a configured policy name
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyStatic:
		return PolicyStatic, nil
	case PolicyHealth:
		return PolicyHealth, nil
	}
	return "", fmt.Errorf("unknown gateway ordering policy %q", s)
}

// Candidate is one fully qualified URL to attempt. Mirror is nil for passthrough locators.
type Candidate struct {
	URL    string
	Mirror *Mirror
}

// MirrorName returns the mirror identity used for logging and health, or "origin" for passthrough
func (c Candidate) MirrorName() string {
	if c.Mirror == nil {
		return "origin"
	}
	return c.Mirror.Name
}

// Registry holds the ordered mirror list. It performs no I/O.
type Registry struct {
	mu      sync.RWMutex
	mirrors []*Mirror
	policy  Policy
	health  *HealthTracker
}

// NewRegistry creates a registry from mirror configs
func NewRegistry(configs []MirrorConfig, policy Policy, health *HealthTracker) (*Registry, error) {
	r := &Registry{policy: policy, health: health}
	if err := r.Replace(configs); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace swaps the mirror list; used for configuration reloads
func (r *Registry) Replace(configs []MirrorConfig) error {
	if len(configs) == 0 {
		return fmt.Errorf("at least one mirror is required")
	}

	mirrors := make([]*Mirror, 0, len(configs))
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		m, err := NewMirror(cfg)
		if err != nil {
			return err
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate mirror name %q", m.Name)
		}
		seen[m.Name] = true
		mirrors = append(mirrors, m)
	}

	r.mu.Lock()
	r.mirrors = mirrors
	r.mu.Unlock()
	return nil
}

// Mirrors returns the mirrors in current policy order
func (r *Registry) Mirrors() []*Mirror {
	r.mu.RLock()
	mirrors := slices.Clone(r.mirrors)
	r.mu.RUnlock()

	if r.policy == PolicyHealth && r.health != nil {
		// Stable sort keeps configuration order as the tie-break
		slices.SortStableFunc(mirrors, func(a, b *Mirror) int {
			aOpen := r.health.State(a.Name) == BreakerOpen
			bOpen := r.health.State(b.Name) == BreakerOpen
			if aOpen != bOpen {
				if aOpen {
					return 1
				}
				return -1
			}
			ra, rb := r.health.FailureRatio(a.Name), r.health.FailureRatio(b.Name)
			switch {
			case ra < rb:
				return -1
			case ra > rb:
				return 1
			}
			return 0
		})
	}
	return mirrors
}

// Names returns the mirror names in configuration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.mirrors))
	for _, m := range r.mirrors {
		names = append(names, m.Name)
	}
	return names
}

// Mirror looks a mirror up by name
func (r *Registry) Mirror(name string) (*Mirror, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mirrors {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Policy returns the ordering policy
func (r *Registry) Policy() Policy {
	return r.policy
}

// Health returns the tracker consulted by the health policy
func (r *Registry) Health() *HealthTracker {
	return r.health
}

// Candidates yields the URLs to attempt for a locator, lazily and in priority order.
// Content-addressed locators fan out over the mirrors; anything else yields the locator itself.
func (r *Registry) Candidates(l locator.AssetLocator) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		if !l.IsContentAddressed() {
			if l.Path != "" {
				yield(Candidate{URL: l.Path})
			}
			return
		}

		for _, m := range r.Mirrors() {
			if !yield(Candidate{URL: m.URL(l.Path), Mirror: m}) {
				return
			}
		}
	}
}
