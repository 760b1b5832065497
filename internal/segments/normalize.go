package segments

import (
	"sort"
	"strings"
	"unicode"
)

// Normalizer folds segment labels into a comparable form: whitespace and
// punctuation removed, lower case, known synonyms replaced.
type Normalizer struct {
	synonyms []synonym
}

type synonym struct {
	from string
	to   string
}

// NewNormalizer builds a Normalizer. Synonym keys are normalized themselves and
// applied longest first.
func NewNormalizer(synonyms map[string]string) *Normalizer {
	n := &Normalizer{}
	for from, to := range synonyms {
		f := strip(from)
		if f == "" {
			continue
		}
		n.synonyms = append(n.synonyms, synonym{from: f, to: strip(to)})
	}
	sort.Slice(n.synonyms, func(i, j int) bool {
		li, lj := len([]rune(n.synonyms[i].from)), len([]rune(n.synonyms[j].from))
		if li != lj {
			return li > lj
		}
		return n.synonyms[i].from < n.synonyms[j].from
	})
	return n
}

// Normalize returns the folded form of label.
func (n *Normalizer) Normalize(label string) string {
	s := strip(label)
	for _, syn := range n.synonyms {
		s = strings.ReplaceAll(s, syn.from, syn.to)
	}
	return s
}

// raw is the label as written, only trimmed and lower-cased.
func raw(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
