// Package textmatch provides the text normalization and fuzzy string
// matching shared by the classifier and the dedup store. Matching runs in
// three tiers: exact substring, token-against-token similarity, and whole
// phrase similarity, each with its own threshold.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Default thresholds for the fuzzy tiers.
const (
	DefaultTokenThreshold  = 0.92
	DefaultPhraseThreshold = 0.86
)

// Spanish and Portuguese place names show up both with and without accents
// depending on the site, so fold the common Latin diacritics before matching.
var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c",
)

// Normalize lowercases the input, folds diacritics, collapses punctuation to
// spaces and squeezes repeated whitespace. Normalizing an already normalized
// string is a no-op.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = accentFolder.Replace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Ratio returns a similarity ratio in [0,1] between two strings, computed
// character-wise with the difflib sequence matcher.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Matcher bundles the fuzzy-tier thresholds.
type Matcher struct {
	TokenThreshold  float64
	PhraseThreshold float64
}

// NewMatcher returns a matcher with the default thresholds.
func NewMatcher() Matcher {
	return Matcher{
		TokenThreshold:  DefaultTokenThreshold,
		PhraseThreshold: DefaultPhraseThreshold,
	}
}

// Exact reports whether phrase occurs in text as a substring. Both inputs
// are expected to be normalized already.
func (m Matcher) Exact(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	return strings.Contains(text, phrase)
}

// Tokens reports whether any token of phrase is similar to any token of
// text at or above the token threshold.
func (m Matcher) Tokens(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	textTokens := strings.Fields(text)
	for _, pt := range strings.Fields(phrase) {
		for _, tt := range textTokens {
			if Ratio(pt, tt) >= m.TokenThreshold {
				return true
			}
		}
	}
	return false
}

// Phrase compares the whole phrase against the whole text with the looser
// full-text threshold.
func (m Matcher) Phrase(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	return Ratio(phrase, text) >= m.PhraseThreshold
}

// Match runs the three tiers in order and reports whether any of them hit.
func (m Matcher) Match(text, phrase string) bool {
	return m.Exact(text, phrase) || m.Tokens(text, phrase) || m.Phrase(text, phrase)
}
