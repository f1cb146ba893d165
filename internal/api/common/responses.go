package common

import "github.com/arcade-market/media-api/pkg/gateway"

// ResolveResponse is returned by the resolve endpoint on success
type ResolveResponse struct {
	ImageURL   string `json:"imageUrl"`
	Strategy   string `json:"strategy,omitempty"`
	BestEffort bool   `json:"bestEffort,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}

// MirrorResponse describes a configured mirror and its health
type MirrorResponse struct {
	gateway.MirrorConfig
	Health gateway.MirrorHealth `json:"health"`
}
