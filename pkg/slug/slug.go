// Package slug builds URL-friendly identifiers from display names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters with no canonical decomposition into an ASCII base.
var letters = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "ł", "l", "đ", "d",
)

// Generate lowercases name, strips diacritics and joins the remaining
// alphanumeric runs with hyphens:
//
//	"Kadın Giyim"     -> "kadin-giyim"
//	"Crème Brûlée!"   -> "creme-brulee"
//	"  Hello   World" -> "hello-world"
func Generate(name string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		stripped = name
	}
	s := letters.Replace(strings.ToLower(stripped))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}
