// Package slug derives URL-safe identifiers from titles and allocates a free
// one within a category namespace.
package slug

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title contains no slug characters at all.
const Fallback = "item"

// LookupFunc reports whether slug is already taken.
type LookupFunc func(ctx context.Context, slug string) (bool, error)

// transliterations covers lowercase letters that have no canonical
// decomposition and would otherwise be dropped.
var transliterations = strings.NewReplacer(
	"ø", "o",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

// Slugify lowercases title, folds diacritics and collapses every run of
// characters outside [a-z0-9] into one hyphen.
func Slugify(title string) string {
	lowered := transliterations.Replace(strings.ToLower(title))
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), lowered)
	if err != nil {
		folded = lowered
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// Allocate returns the first free slug among base, base-1, base-2, ...
// It is deterministic for a fixed set of taken slugs but does not reserve
// the result; callers serialise with a Locker or rely on the repository's
// uniqueness constraint.
func Allocate(ctx context.Context, title string, exists LookupFunc) (string, error) {
	return AllocateBase(ctx, Slugify(title), exists)
}

// AllocateBase is Allocate for an already derived base slug.
func AllocateBase(ctx context.Context, base string, exists LookupFunc) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}
