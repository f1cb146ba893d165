package cache

import "time"

// ResolutionEntry is the stored outcome of one locator resolution.
// It is mode independent: strict and best-effort callers share it.
type ResolutionEntry struct {
	Status      string    `json:"status"`
	URL         string    `json:"url,omitempty"`
	FallbackURL string    `json:"fallback_url,omitempty"`
	Strategy    string    `json:"strategy,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
