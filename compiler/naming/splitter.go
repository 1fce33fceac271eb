package naming

import (
	"bufio"
	"cmp"
	"io"
	"slices"
	"strings"
	"unicode/utf8"
)

// shortWords are the two-letter words kept in a dictionary. Other words
// shorter than three letters produce too many false segmentations.
var shortWords = []string{
	"am", "an", "as", "at", "be", "by", "do", "go", "he", "if", "in", "is",
	"it", "me", "my", "no", "of", "on", "or", "so", "to", "up", "us", "we",
}

// Segment is one entry of a segmentation log.
type Segment struct {
	Text string
	// Pos is the byte offset of the segment in the input.
	Pos int
	// Matched reports whether the segment is a dictionary word.
	Matched bool
}

// DictionarySplitter segments words by greedily consuming the longest
// dictionary word prefix. When no word matches, the unmatched remainder is
// kept as a single segment.
type DictionarySplitter struct {
	words []string
	known map[string]struct{}
}

// NewDictionarySplitter returns a splitter over words. Words shorter than
// three letters are dropped, except for a fixed set of common two-letter
// words.
func NewDictionarySplitter(words []string) *DictionarySplitter {
	d := &DictionarySplitter{known: make(map[string]struct{})}
	for _, w := range append(slices.Clone(words), shortWords...) {
		w = strings.ToLower(strings.TrimSpace(w))
		if _, ok := d.known[w]; ok {
			continue
		}
		if utf8.RuneCountInString(w) < 3 && !slices.Contains(shortWords, w) {
			continue
		}
		d.known[w] = struct{}{}
		d.words = append(d.words, w)
	}
	slices.SortStableFunc(d.words, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return d
}

// LoadDictionary reads a newline separated word list.
func LoadDictionary(r io.Reader) (*DictionarySplitter, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewDictionarySplitter(words), nil
}

// Len returns the number of words in the dictionary.
func (d *DictionarySplitter) Len() int { return len(d.words) }

// Segment returns the segmentation log of word.
func (d *DictionarySplitter) Segment(word string) []Segment {
	word = strings.ToLower(word)
	var segs []Segment
	for pos := 0; pos < len(word); {
		rest := word[pos:]
		i := slices.IndexFunc(d.words, func(w string) bool { return strings.HasPrefix(rest, w) })
		if i < 0 {
			segs = append(segs, Segment{Text: rest, Pos: pos})
			break
		}
		segs = append(segs, Segment{Text: d.words[i], Pos: pos, Matched: true})
		pos += len(d.words[i])
	}
	return segs
}

// Split implements Splitter. Dictionary words and their plurals are
// returned whole. A segmentation is kept only when its unmatched remainder
// has at least two letters, so "posts" never becomes "post s", and is no
// longer than the matched words, so "orders" never becomes "or ders".
func (d *DictionarySplitter) Split(word string) []string {
	lower := strings.ToLower(word)
	if d.has(lower) || d.has(rules.Singularize(lower)) {
		return []string{lower}
	}
	segs := d.Segment(lower)
	if len(segs) < 2 {
		return []string{lower}
	}
	words := make([]string, 0, len(segs))
	var matched, unmatched int
	for _, s := range segs {
		n := utf8.RuneCountInString(s.Text)
		if s.Matched {
			matched += n
		} else {
			if n < 2 {
				return []string{lower}
			}
			unmatched += n
		}
		words = append(words, s.Text)
	}
	if unmatched > matched {
		return []string{lower}
	}
	return words
}

func (d *DictionarySplitter) has(w string) bool {
	_, ok := d.known[w]
	return ok
}
