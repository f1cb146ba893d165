package resolver

import (
	"math/big"

	"github.com/arcade-market/media-api/pkg/locator"
)

// ImageExtensions are tried for every guessed file name, in order
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

// ConventionalNames are file names collections commonly use for a single shared image
var ConventionalNames = []string{"0", "cover", "preview", "image", "logo", "banner"}

// DirectoryGuesser produces file names to try inside a directory locator. It performs no I/O.
type DirectoryGuesser struct {
	Extensions []string
	Names      []string
}

// NewDirectoryGuesser returns a guesser with the default extensions and names
func NewDirectoryGuesser() DirectoryGuesser {
	return DirectoryGuesser{Extensions: ImageExtensions, Names: ConventionalNames}
}

// CandidateFilenames returns image file names in priority order: hex token id and decimal token id,
// each with every extension, then every conventional name with the first extension before any
// name is tried with the next one. Duplicates keep their first position.
func (g DirectoryGuesser) CandidateFilenames(tokenID *big.Int) []string {
	stems := g.stems(tokenID)

	names := make([]string, 0, (len(stems)+len(g.Names))*len(g.Extensions))
	for _, stem := range stems {
		for _, ext := range g.Extensions {
			names = append(names, stem+ext)
		}
	}
	for _, ext := range g.Extensions {
		for _, name := range g.Names {
			names = append(names, name+ext)
		}
	}
	return dedupe(names)
}

// MetadataFilenames returns the names a per-token metadata document is usually published under
func (g DirectoryGuesser) MetadataFilenames(tokenID *big.Int) []string {
	stems := g.stems(tokenID)
	if len(stems) < 2 {
		return []string{"metadata.json"}
	}
	hexID, dec := stems[0], stems[1]
	return dedupe([]string{dec + ".json", hexID + ".json", dec, hexID, "metadata.json"})
}

// stems returns the hex and decimal renderings of the token id
func (g DirectoryGuesser) stems(tokenID *big.Int) []string {
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	hexID, err := locator.HexTokenID(tokenID)
	if err != nil {
		return nil
	}
	return []string{hexID, tokenID.String()}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
