package naming

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ConflictSuffix is appended to relation names colliding with an existing
// field or relation name.
const ConflictSuffix = "_rel"

var (
	rules  = ruleset()
	titler = cases.Title(language.English)
	fkRe   = regexp.MustCompile(`(?i)_?id$`)
)

// acronyms are kept upper-cased in Go identifiers.
var acronyms = []string{
	"ACL", "API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS",
	"ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SQL", "SSH",
	"TCP", "TLS", "TTL", "UDP", "UI", "UID", "URI", "URL", "UTF8", "UUID", "VM", "XML",
}

func ruleset() *inflect.Ruleset {
	r := inflect.NewDefaultRuleset()
	for _, w := range acronyms {
		r.AddAcronym(w)
	}
	return r
}

// Splitter segments a single lowercase word without boundaries into the
// words it is made of.
type Splitter interface {
	Split(word string) []string
}

// Namer derives names from identifiers. The zero value splits on
// boundaries only.
type Namer struct {
	splitter Splitter
}

// Option configures a Namer.
type Option func(*Namer)

// WithSplitter segments boundary-free words with s.
func WithSplitter(s Splitter) Option {
	return func(n *Namer) { n.splitter = s }
}

// New returns a Namer configured with opts.
func New(opts ...Option) *Namer {
	n := &Namer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var std = New()

// Split splits name into lowercase words.
func Split(name string) []string { return std.Split(name) }

// Split splits name into lowercase words on underscores, case changes and
// letter to digit boundaries. Words are further segmented by the
// configured Splitter.
func (n *Namer) Split(name string) []string {
	var words []string
	for _, w := range splitBoundaries(name) {
		if n.splitter == nil {
			words = append(words, w)
			continue
		}
		words = append(words, n.splitter.Split(w)...)
	}
	return words
}

func splitBoundaries(name string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(name)
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && len(cur) > 0 {
			prev := rs[i-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsLetter(prev) && unicode.IsDigit(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(rs) && unicode.IsLower(rs[i+1]) && !pluralAcronym(rs, i+1):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// pluralAcronym reports whether the lowercase run starting at i is a single
// "s" closing an acronym, as in "IDs".
func pluralAcronym(rs []rune, i int) bool {
	return rs[i] == 's' && (i+1 == len(rs) || !unicode.IsLower(rs[i+1]))
}

// StripForeignKeySuffix removes a trailing "_id" or "id" in any case.
// Names made only of the suffix are returned unchanged.
func StripForeignKeySuffix(name string) string {
	stripped := fkRe.ReplaceAllString(name, "")
	if stripped == "" {
		return name
	}
	return stripped
}

// Options controls RelationName.
type Options struct {
	// Plural names to-many relations.
	Plural bool
	// ConflictKey qualifies relations of a group targeting the same table,
	// rendered as "<name>_where_<key>".
	ConflictKey string
}

// RelationName returns the relation name derived from a foreign key column
// or a table name, unique among existing (compared case-insensitively).
func RelationName(name string, existing []string, opts Options) string {
	return std.RelationName(name, existing, opts)
}

// RelationName returns the relation name derived from a foreign key column
// or a table name, unique among existing (compared case-insensitively).
func (n *Namer) RelationName(name string, existing []string, opts Options) string {
	words := n.Split(StripForeignKeySuffix(name))
	if opts.Plural {
		words = pluralWords(words)
	} else {
		words = singularWords(words)
	}
	rel := strings.Join(words, "_")
	if opts.ConflictKey != "" {
		rel += "_where_" + strings.Join(n.Split(opts.ConflictKey), "_")
	}
	for collides(rel, existing) {
		rel += ConflictSuffix
	}
	return rel
}

func collides(name string, existing []string) bool {
	return slices.ContainsFunc(existing, func(e string) bool { return strings.EqualFold(e, name) })
}

// ModelName returns the Go type name of the model stored in table:
// "order_items" becomes "OrderItem".
func ModelName(table string) string { return std.ModelName(table) }

// ModelName returns the Go type name of the model stored in table.
func (n *Namer) ModelName(table string) string {
	return pascalWords(singularWords(n.Split(table)))
}

// RouteName returns the URL segment of the resource stored in table:
// "order_item" becomes "order-items".
func RouteName(table string) string { return std.RouteName(table) }

// RouteName returns the URL segment of the resource stored in table.
func (n *Namer) RouteName(table string) string {
	return strings.Join(pluralWords(n.Split(table)), "-")
}

// DisplayName returns the human-readable singular name of the records
// stored in table: "order_items" becomes "Order Item".
func DisplayName(table string) string { return std.DisplayName(table) }

// DisplayName returns the human-readable singular name of the records
// stored in table.
func (n *Namer) DisplayName(table string) string {
	return titler.String(strings.Join(singularWords(n.Split(table)), " "))
}

// Singular returns the singular form of the last word of s.
func Singular(s string) string {
	return rules.Singularize(s)
}

// Plural returns the plural form of the last word of s.
func Plural(s string) string {
	return rules.Pluralize(s)
}

func singularWords(words []string) []string {
	if len(words) == 0 {
		return words
	}
	words = slices.Clone(words)
	words[len(words)-1] = rules.Singularize(words[len(words)-1])
	return words
}

func pluralWords(words []string) []string {
	if len(words) == 0 {
		return words
	}
	words = slices.Clone(words)
	last := words[len(words)-1]
	if plural := rules.Pluralize(last); plural != last {
		words[len(words)-1] = plural
	}
	return words
}

// Snake returns s in snake_case.
func Snake(s string) string { return strings.Join(Split(s), "_") }

// Kebab returns s in kebab-case.
func Kebab(s string) string { return strings.Join(Split(s), "-") }

// Pascal returns s in PascalCase, keeping known acronyms upper-cased.
func Pascal(s string) string { return pascalWords(Split(s)) }

// Camel returns s in camelCase, keeping known acronyms upper-cased after
// the first word.
func Camel(s string) string {
	words := Split(s)
	if len(words) == 0 {
		return ""
	}
	return words[0] + pascalWords(words[1:])
}

func pascalWords(words []string) string {
	var b strings.Builder
	for _, w := range words {
		if up := strings.ToUpper(w); slices.Contains(acronyms, up) {
			b.WriteString(up)
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(w[size:])
	}
	return b.String()
}

// Title returns the words of s title-cased and separated by spaces.
func Title(s string) string {
	return titler.String(strings.Join(Split(s), " "))
}
