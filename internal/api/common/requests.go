package common

// ResolveRequest is the query of GET /api/v1/resolve
type ResolveRequest struct {
	// Required: the raw asset locator
	Src string `query:"src" validate:"required,max=8192"`
	// Decimal or 0x-prefixed hex token id, defaults to 0
	TokenID string `query:"tokenId" validate:"omitempty,max=80"`
	// Strict turns a best-effort URL into an error
	Strict bool `query:"strict"`
}

// ImageRequest is the query of GET /api/v1/image
type ImageRequest struct {
	Src     string `query:"src" validate:"required,max=8192"`
	TokenID string `query:"tokenId" validate:"omitempty,max=80"`
}
