// Package similarity implements token-set similarity used for auto-linking
// and consolidation's merge-similar pass (spec.md §4.3).
package similarity

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases text, strips punctuation, splits on whitespace, and
// drops tokens of length <= 2.
func Tokenize(text string) map[string]struct{} {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity between two texts by tokenizing
// each. jaccard(∅, ∅) = 1, jaccard(X, ∅) = 0.
func Jaccard(a, b string) float64 {
	return JaccardSets(Tokenize(a), Tokenize(b))
}

// JaccardSets computes Jaccard similarity over pre-tokenized sets, for hot
// O(n²) loops (consolidation's merge-similar pass) that would otherwise
// re-tokenize the same text repeatedly.
func JaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}

	intersection := 0
	for tok := range smaller {
		if _, ok := larger[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}
