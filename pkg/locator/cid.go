package locator

import (
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// IsCID reports whether s decodes as a content identifier in any multibase encoding
func IsCID(s string) bool {
	if len(s) < 2 {
		return false
	}
	_, err := gocid.Decode(s)
	return err == nil
}

// IsCIDPath reports whether s is a content identifier optionally followed by "/path"
func IsCIDPath(s string) bool {
	return IsCID(RootCID(s))
}

// RootCID returns the leading content identifier of a content-addressed path
func RootCID(path string) string {
	if idx := strings.IndexAny(path, "/?#"); idx >= 0 {
		return path[:idx]
	}
	return path
}
