package search

// Document is a tokenized piece of content.
type Document struct {
	freq  map[string]int
	total int
}

// NewDocument tokenizes content once for repeated matching.
func NewDocument(content string) Document {
	tokens := Tokenize(content)
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	return Document{freq: freq, total: len(tokens)}
}

// Matches reports whether the document contains every query token.
// An empty token list matches every document.
func (d Document) Matches(queryTokens []string) bool {
	for _, tok := range queryTokens {
		if d.freq[tok] == 0 {
			return false
		}
	}
	return true
}

// Relevance returns the share of the document's tokens that are query tokens.
// The value is in [0, 1]; documents that don't match all tokens score 0, as
// does an empty query.
func (d Document) Relevance(queryTokens []string) float64 {
	if len(queryTokens) == 0 || d.total == 0 || !d.Matches(queryTokens) {
		return 0
	}

	hits := 0
	for _, tok := range queryTokens {
		hits += d.freq[tok]
	}
	return float64(hits) / float64(d.total)
}

// Matches reports whether content contains all query tokens, in any order.
func Matches(content string, queryTokens []string) bool {
	return NewDocument(content).Matches(queryTokens)
}
