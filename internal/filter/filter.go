// Package filter implements the geographic admission filter: the decision
// whether a newly discovered account belongs in the tracked population,
// based on its free-text location field.
package filter

import "strings"

// accentFold maps accented vowels (acute, grave, diaeresis) and the
// tilde-n to their plain Latin counterpart. This is the entire
// normalization vocabulary: anything outside the table passes through
// unchanged, so the filter never fuzzy-matches.
var accentFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"ä", "a", "ë", "e", "ï", "i", "ö", "o", "ü", "u",
	"ñ", "n",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U",
	"À", "A", "È", "E", "Ì", "I", "Ò", "O", "Ù", "U",
	"Ä", "A", "Ë", "E", "Ï", "I", "Ö", "O", "Ü", "U",
	"Ñ", "N",
)

// Normalize lowercases s, strips commas, folds accents and collapses
// whitespace to single spaces. Deterministic: equal inputs always yield
// equal outputs.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ",", "")
	s = accentFold.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits the normalized form of s into whitespace-delimited tokens.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Policy selects which of the two admission rules applies. The source
// population was built with different strictness on its two discovery
// paths; both rules are preserved as-is rather than unified, so call
// sites state explicitly which behavior they inherit.
type Policy int

const (
	// PolicyTokenMatch admits when at least one location token is in the
	// reference set. Used on the graph-discovery path.
	PolicyTokenMatch Policy = iota
	// PolicyExactMatch admits only when the entire normalized location
	// equals a reference entry. Used on the seed-list path.
	PolicyExactMatch
)

// ReferenceSet is the immutable set of normalized reference locations,
// loaded once per process and used as the admission predicate.
type ReferenceSet struct {
	entries map[string]struct{}
}

// NewReferenceSet normalizes and indexes the given location names.
func NewReferenceSet(names []string) *ReferenceSet {
	entries := make(map[string]struct{}, len(names))
	for _, name := range names {
		if n := Normalize(name); n != "" {
			entries[n] = struct{}{}
		}
	}
	return &ReferenceSet{entries: entries}
}

// Len returns the number of distinct normalized entries.
func (r *ReferenceSet) Len() int { return len(r.entries) }

// Admit decides whether a location string belongs to the reference
// geography under the given policy. An empty or unparseable location is
// never admitted.
func (r *ReferenceSet) Admit(location string, policy Policy) bool {
	switch policy {
	case PolicyExactMatch:
		n := Normalize(location)
		if n == "" {
			return false
		}
		_, ok := r.entries[n]
		return ok
	default:
		for _, token := range Tokens(location) {
			if _, ok := r.entries[token]; ok {
				return true
			}
		}
		return false
	}
}
