// Package search provides keyword tokenization, matching and the in-memory
// text relevance measure used by post search.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize splits text into normalized keyword tokens.
// Text is NFKC-normalized and case-folded, then split on every rune that is
// neither a letter nor a number. Empty input yields nil.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// cases.Caser is stateful; one per call.
	folded := cases.Fold().String(norm.NFKC.String(text))

	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// QueryTokens tokenizes a search query and removes duplicate tokens,
// keeping first-occurrence order.
func QueryTokens(query string) []string {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	unique := tokens[:0]
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		unique = append(unique, tok)
	}
	return unique
}
