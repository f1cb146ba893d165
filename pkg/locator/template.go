package locator

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// ErrInvalidTokenID is returned for token ids that are negative, malformed or wider than 256 bits
var ErrInvalidTokenID = errors.New("invalid token id")

// hexWidth is the fixed width of an expanded {id} marker
const hexWidth = 64

// {id} and its URL-escaped form, case-insensitive
var markerPattern = regexp.MustCompile(`(?i)\{id\}|%7Bid%7D`)

var maxTokenID = new(big.Int).Lsh(big.NewInt(1), 256)

// HasTemplate reports whether the locator path carries an {id} marker
func HasTemplate(l AssetLocator) bool {
	return markerPattern.MatchString(l.Path)
}

// Expand substitutes every {id} marker with the token id rendered as 64 lowercase
// zero-padded hex characters. A locator without markers is returned unchanged.
func Expand(l AssetLocator, tokenID *big.Int) (AssetLocator, error) {
	if !HasTemplate(l) {
		return l, nil
	}

	hexID, err := HexTokenID(tokenID)
	if err != nil {
		return l, err
	}

	path := markerPattern.ReplaceAllLiteralString(l.Path, hexID)
	return newLocator(l.Scheme, path, l.Raw), nil
}

// HexTokenID renders a token id in the fixed-width form used by {id} templates
func HexTokenID(tokenID *big.Int) (string, error) {
	if err := checkRange(tokenID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*x", hexWidth, tokenID), nil
}

// ParseTokenID coerces caller input into a token id.
// Accepted: decimal or 0x-prefixed hex strings, signed and unsigned integers, *big.Int.
// An empty string or nil means token 0.
func ParseTokenID(v any) (*big.Int, error) {
	var id *big.Int

	switch t := v.(type) {
	case nil:
		id = new(big.Int)
	case *big.Int:
		if t == nil {
			return nil, fmt.Errorf("%w: nil", ErrInvalidTokenID)
		}
		id = new(big.Int).Set(t)
	case int:
		id = big.NewInt(int64(t))
	case int64:
		id = big.NewInt(t)
	case int32:
		id = big.NewInt(int64(t))
	case uint:
		id = new(big.Int).SetUint64(uint64(t))
	case uint64:
		id = new(big.Int).SetUint64(t)
	case uint32:
		id = new(big.Int).SetUint64(uint64(t))
	case string:
		parsed, err := parseTokenString(t)
		if err != nil {
			return nil, err
		}
		id = parsed
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidTokenID, v)
	}

	if err := checkRange(id); err != nil {
		return nil, err
	}
	return id, nil
}

func parseTokenString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	// SetString would accept a sign and underscores for base 0, so keep the digit set strict
	for _, r := range digits {
		if !isDigit(r, base) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTokenID, s)
		}
	}
	if digits == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTokenID, s)
	}

	id, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTokenID, s)
	}
	return id, nil
}

func isDigit(r rune, base int) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case base == 16 && ((r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')):
		return true
	}
	return false
}

func checkRange(id *big.Int) error {
	if id == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTokenID)
	}
	if id.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", ErrInvalidTokenID, id)
	}
	if id.Cmp(maxTokenID) >= 0 {
		return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidTokenID)
	}
	return nil
}
