package similarity

import (
	"regexp"
	"strings"
)

var (
	quotedPhrase    = regexp.MustCompile(`"([^"]{3,})"`)
	backtickedTerm  = regexp.MustCompile("`([^`]+)`")
	capitalizedWord = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]{2,}\b`)
)

// techLexicon is a fixed set of technology terms recognized as key phrases
// regardless of casing (spec.md §4.3).
var techLexicon = []string{
	"golang", "python", "typescript", "javascript", "docker", "kubernetes",
	"postgres", "sqlite", "redis", "graphql", "grpc", "react", "vue",
}

// ExtractKeyPhrases collects quoted phrases, backticked terms, capitalized
// identifiers, and lexicon matches from text, in that priority order,
// without duplicates.
func ExtractKeyPhrases(text string) []string {
	seen := make(map[string]bool)
	var phrases []string

	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		phrases = append(phrases, s)
	}

	for _, m := range quotedPhrase.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range backtickedTerm.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range capitalizedWord.FindAllString(text, -1) {
		add(m)
	}

	lowerText := strings.ToLower(text)
	for _, term := range techLexicon {
		if strings.Contains(lowerText, term) {
			add(term)
		}
	}

	return phrases
}
