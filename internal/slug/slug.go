// Package slug derives URL identifiers for stores from their names.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a name has no characters that survive slugging.
const Fallback = "store"

// Lookup finds existing slugs that may collide with base. Implementations
// may return a superset; Resolve filters with Matches.
type Lookup interface {
	SlugsLike(ctx context.Context, base string, excludeID string) ([]string, error)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Base lowercases and hyphenates name. Accents are stripped and every run
// of other characters becomes a single hyphen.
func Base(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	s := nonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Fallback
	}
	return s
}

// Matches reports whether candidate is base or base followed by a numeric
// suffix, ignoring case.
func Matches(base, candidate string) bool {
	if len(candidate) < len(base) || !strings.EqualFold(candidate[:len(base)], base) {
		return false
	}
	rest := candidate[len(base):]
	if rest == "" {
		return true
	}
	if rest[0] != '-' {
		return false
	}
	for _, c := range rest[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// WithSuffix returns base-n, or base itself when n < 2.
func WithSuffix(base string, n int) string {
	if n < 2 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// Resolve returns the slug a store named name should carry. When the store
// already has a slug and its name is unchanged the current slug is kept.
// Otherwise N existing matches of the base give base-(N+1).
func Resolve(ctx context.Context, lookup Lookup, name, previousName, current, excludeID string) (string, error) {
	if current != "" && name == previousName {
		return current, nil
	}
	base := Base(name)
	existing, err := lookup.SlugsLike(ctx, base, excludeID)
	if err != nil {
		return "", fmt.Errorf("failed to look up slugs for %q: %w", base, err)
	}
	n := 0
	for _, s := range existing {
		if Matches(base, s) {
			n++
		}
	}
	if n == 0 {
		return base, nil
	}
	return WithSuffix(base, n+1), nil
}

// Next returns the slug following candidate in base's sequence:
// base -> base-2 -> base-3. It is used to retry after a unique-key conflict.
func Next(base, candidate string) string {
	if rest, ok := strings.CutPrefix(candidate, base+"-"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 2 {
			return WithSuffix(base, n+1)
		}
	}
	return WithSuffix(base, 2)
}
