package utils

import (
	"strings"
	"unicode"
)

// MinKeywordLength is the shortest token considered meaningful for
// keyword matching. Shorter words are mostly articles and pronouns.
const MinKeywordLength = 3

// StripPunctuation removes punctuation and symbol runes from s,
// collapsing runs of whitespace to a single space.
func StripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ExtractKeywords tokenizes a message into lowercase words longer than
// two characters, with punctuation stripped and duplicates removed.
// Order of first occurrence is preserved.
func ExtractKeywords(message string) []string {
	cleaned := StripPunctuation(strings.ToLower(message))

	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len([]rune(word)) < MinKeywordLength {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

// OverlapScore computes the similarity between two keyword sets as
// overlap / max(len(a), len(b)), in [0,1]. Empty input on either side
// scores zero.
func OverlapScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inA := make(map[string]bool, len(a))
	for _, w := range a {
		inA[w] = true
	}

	overlap := 0
	counted := make(map[string]bool, len(b))
	for _, w := range b {
		if counted[w] {
			continue
		}
		counted[w] = true
		if inA[w] {
			overlap++
		}
	}

	denom := len(inA)
	if len(counted) > denom {
		denom = len(counted)
	}
	return float64(overlap) / float64(denom)
}

// HasOverlap reports whether the two keyword sets share at least one word.
func HasOverlap(a, b []string) bool {
	inA := make(map[string]bool, len(a))
	for _, w := range a {
		inA[w] = true
	}
	for _, w := range b {
		if inA[w] {
			return true
		}
	}
	return false
}
