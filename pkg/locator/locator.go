package locator

import (
	"net/url"
	"strings"
)

// Scheme identifies how a locator's path must be fetched
type Scheme string

const (
	// SchemeContentAddressed paths start with a content identifier and are served by mirrors
	SchemeContentAddressed Scheme = "content-addressed"
	// SchemeHTTP paths are full URLs fetched as-is
	SchemeHTTP Scheme = "http"
	// SchemeUnknown paths are opaque and attempted as-is
	SchemeUnknown Scheme = "unknown"
)

// Kind is what the locator appears to point at, inferred once from its path
type Kind string

const (
	// KindDirect points at media bytes
	KindDirect Kind = "direct"
	// KindMetadata points at a JSON metadata document
	KindMetadata Kind = "metadata"
	// KindDirectory points at a directory whose file name has to be guessed
	KindDirectory Kind = "directory"
)

const contentPrefix = "ipfs://"

// AssetLocator is an unresolved pointer to a piece of media.
// Values are never mutated; Normalize and Expand derive new ones.
type AssetLocator struct {
	Scheme Scheme
	Path   string
	Raw    string
	Kind   Kind
}

// newLocator is the single place a locator's kind is inferred
func newLocator(scheme Scheme, path, raw string) AssetLocator {
	return AssetLocator{
		Scheme: scheme,
		Path:   path,
		Raw:    raw,
		Kind:   classify(path),
	}
}

// Normalize parses a raw locator into its canonical form. It never fails:
// unrecognized input degrades to SchemeUnknown.
func Normalize(raw string) AssetLocator {
	s := strings.TrimSpace(raw)

	switch {
	case s == "":
		return newLocator(SchemeUnknown, "", raw)

	case hasPrefixFold(s, contentPrefix):
		return newLocator(SchemeContentAddressed, contentPath(s[len(contentPrefix):]), raw)

	case hasPrefixFold(s, "/ipfs/"):
		return newLocator(SchemeContentAddressed, contentPath(s), raw)

	case hasPrefixFold(s, "data:"):
		return newLocator(SchemeHTTP, s, raw)

	case hasPrefixFold(s, "http://") || hasPrefixFold(s, "https://"):
		if path, ok := fromGatewayURL(s); ok {
			return newLocator(SchemeContentAddressed, path, raw)
		}
		return newLocator(SchemeHTTP, s, raw)

	case IsCIDPath(s):
		return newLocator(SchemeContentAddressed, s, raw)
	}

	return newLocator(SchemeUnknown, s, raw)
}

// contentPath strips every leading slash and redundant "ipfs/" segment,
// so ipfs://ipfs/ipfs/<cid> and /ipfs//<cid> both come down to <cid>
func contentPath(path string) string {
	for {
		path = strings.TrimLeft(path, "/")
		if !hasPrefixFold(path, "ipfs/") {
			return path
		}
		path = path[len("ipfs/"):]
	}
}

// fromGatewayURL rewrites an already dereferenced mirror URL back to its content path.
// Path style: https://host/ipfs/<cid>/file. Subdomain style: https://<cid>.ipfs.host/file.
func fromGatewayURL(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}

	path := u.EscapedPath()
	if idx := strings.Index(path, "/ipfs/"); idx >= 0 {
		rest := contentPath(path[idx+len("/ipfs/"):])
		if !IsCIDPath(rest) {
			return "", false
		}
		if u.RawQuery != "" {
			rest += "?" + u.RawQuery
		}
		return rest, true
	}

	host := u.Hostname()
	if idx := strings.Index(host, ".ipfs."); idx > 0 && IsCID(host[:idx]) {
		rest := host[:idx] + path
		if u.RawQuery != "" {
			rest += "?" + u.RawQuery
		}
		return rest, true
	}

	return "", false
}

// String renders the canonical form of the locator
func (l AssetLocator) String() string {
	if l.Scheme == SchemeContentAddressed {
		return contentPrefix + l.Path
	}
	return l.Path
}

// IsContentAddressed reports whether mirrors have to be consulted for this locator
func (l AssetLocator) IsContentAddressed() bool {
	return l.Scheme == SchemeContentAddressed
}

// IsDataURI reports whether the locator already carries its content inline
func (l AssetLocator) IsDataURI() bool {
	return l.Scheme == SchemeHTTP && hasPrefixFold(l.Path, "data:")
}

// Directory returns the locator for the directory this locator refers to.
// Only meaningful for KindDirectory locators; "/metadata" is treated as a directory name.
func (l AssetLocator) Directory() AssetLocator {
	path := stripQuery(l.Path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return newLocator(l.Scheme, path, l.Raw)
}

// Join appends a file name to a directory locator
func (l AssetLocator) Join(name string) AssetLocator {
	path := stripQuery(l.Path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return newLocator(l.Scheme, path+name, l.Raw)
}

// classify infers the locator kind from the terminal path segment
func classify(path string) Kind {
	p := strings.ToLower(stripQuery(path))
	switch {
	case p == "":
		return KindDirect
	case strings.HasSuffix(p, ".json"):
		return KindMetadata
	case strings.HasSuffix(p, "/"), strings.HasSuffix(p, "/metadata"):
		return KindDirectory
	}
	return KindDirect
}

// IsDirectoryURL reports whether a fetched URL looks like a directory reference
func IsDirectoryURL(u string) bool {
	return classify(u) == KindDirectory
}

func stripQuery(path string) string {
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		return path[:idx]
	}
	return path
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
