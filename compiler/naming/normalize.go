package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Mode selects the transform applied by Normalize.
type Mode string

// Normalization modes.
const (
	ModeCamel  Mode = "camel"
	ModePascal Mode = "pascal"
	ModeSnake  Mode = "snake"
	ModeKebab  Mode = "kebab"
	ModeTitle  Mode = "title"
	ModeSlug   Mode = "slug"
	ModeLower  Mode = "lower"
	ModeUpper  Mode = "upper"
)

// Normalize applies exactly one transform to s. Unknown modes return s
// unchanged.
func Normalize(s string, mode Mode) string {
	switch mode {
	case ModeCamel:
		return Camel(s)
	case ModePascal:
		return Pascal(s)
	case ModeSnake:
		return Snake(s)
	case ModeKebab:
		return Kebab(s)
	case ModeTitle:
		return Title(s)
	case ModeSlug:
		return Slug(s)
	case ModeLower:
		return strings.ToLower(s)
	case ModeUpper:
		return strings.ToUpper(s)
	default:
		return s
	}
}

// Slug returns the URL slug of s: accents are removed, letters are
// lower-cased and every run of other characters becomes a single dash.
// "ACME Corp" and " acme-corp!" both become "acme-corp".
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
