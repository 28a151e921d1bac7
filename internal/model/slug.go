package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify derives the URL-safe slug for an artist name.
// Accents are folded, letters are lower-cased and every run of other
// characters becomes a single hyphen. Letters outside the Latin script are
// kept as they are, so such slugs must be percent-encoded in URLs.
// Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// FallbackSlug is the slug of an artist whose name has no letters or
// digits left after Slugify, such as the band "!!!".
func FallbackSlug(spotifyID string) string {
	id := Slugify(spotifyID)
	if id == "" {
		return ""
	}
	return "artist-" + id
}
