// Package textnorm normalizes raw post text before persistence.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/geopop/harvester/internal/filter"
)

var (
	urlRe      = regexp.MustCompile(`http.*`)
	imageRe    = regexp.MustCompile(`pic\.twitter\S+`)
	hashtagRe  = regexp.MustCompile(`#\S+`)
	mentionRe  = regexp.MustCompile(`@\S+`)
	nonAlnumRe = regexp.MustCompile(`[^0-9A-Za-z \t]`)
)

const (
	minTokenLen = 2
	maxTokenLen = 15
)

// Cleaner applies the fixed normalization pipeline and the topical
// relevance gate. Both word lists are normalized once at construction.
type Cleaner struct {
	stopwords map[string]struct{}
	relevance []string
}

// NewCleaner builds a Cleaner from a stopword list and a domain-relevance
// term list.
func NewCleaner(stopwords, relevance []string) *Cleaner {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		if n := filter.Normalize(w); n != "" {
			stops[n] = struct{}{}
		}
	}
	terms := make([]string, 0, len(relevance))
	for _, w := range relevance {
		if n := filter.Normalize(w); n != "" {
			terms = append(terms, n)
		}
	}
	return &Cleaner{stopwords: stops, relevance: terms}
}

// Clean runs the normalization pipeline over one post's text. The empty
// string means the post is discarded entirely: either nothing survived
// cleaning or no relevance term occurs in the result.
//
// The rule order is fixed and load-bearing: URLs go first (a URL token
// would otherwise shed its punctuation and survive as noise words), and
// the topical gate runs last, over fully cleaned text.
func (c *Cleaner) Clean(text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = imageRe.ReplaceAllString(text, "")
	text = hashtagRe.ReplaceAllString(text, "")
	text = mentionRe.ReplaceAllString(text, "")

	words := strings.Fields(text)
	for i, w := range words {
		words[i] = filter.Normalize(w)
	}
	text = strings.Join(words, " ")

	text = nonAlnumRe.ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	text = stripDigits(text)

	kept := make([]string, 0, 16)
	for _, w := range strings.Fields(text) {
		if _, stop := c.stopwords[w]; stop {
			continue
		}
		if len(w) < minTokenLen || len(w) > maxTokenLen {
			continue
		}
		kept = append(kept, w)
	}
	cleaned := strings.Join(kept, " ")
	if cleaned == "" {
		return ""
	}

	for _, term := range c.relevance {
		if strings.Contains(cleaned, term) {
			return cleaned
		}
	}
	return ""
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s)
}
