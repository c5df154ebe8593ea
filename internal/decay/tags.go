package decay

import (
	"regexp"
	"strings"
)

var tagKeywordPattern = regexp.MustCompile(`\b(golang|python|typescript|javascript|docker|kubernetes|postgres|sqlite|redis|graphql|rest|grpc|auth|cache|queue|testing|ci|cd)\b`)

// ExtractTags deterministically derives tags from content (technology
// lexicon matches) and merges them with caller-supplied tags, deduping and
// lowercasing the result (spec.md §4.2 "tag extraction").
func ExtractTags(content string, callerTags []string) []string {
	lower := strings.ToLower(content)
	seen := make(map[string]bool)
	var tags []string

	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, m := range tagKeywordPattern.FindAllString(lower, -1) {
		add(m)
	}
	for _, t := range callerTags {
		add(t)
	}

	return tags
}
