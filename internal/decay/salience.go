package decay

import (
	"regexp"
	"strings"

	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

const (
	baseSalience        = 0.25
	explicitRequestBump = 0.3
	explicitRequestFloor = 0.7
	architectureBump    = 0.15
	errorBump           = 0.15
	identifierBump      = 0.05
	maxIdentifierBonus  = 0.15
)

var explicitRequestPhrases = []string{
	"remember this", "important", "don't forget", "keep in mind",
}

var architectureKeywords = []string{
	"architecture", "design decision", "decided to", "we chose", "approach",
	"pattern", "convention", "structure",
}

var errorKeywords = []string{
	"error", "bug", "exception", "crash", "failure", "broken", "fix",
}

var identifierPattern = regexp.MustCompile("`[^`]+`|\\b[a-zA-Z_][a-zA-Z0-9_]*(?:[A-Z][a-z0-9]*){1,}\\b")

// ImportanceHint is a user-supplied coarse priority that overrides the
// computed salience with a floor or ceiling.
type ImportanceHint string

const (
	ImportanceHigh   ImportanceHint = "high"
	ImportanceMedium ImportanceHint = "medium"
	ImportanceLow    ImportanceHint = "low"
)

// ScoreSalience computes the base importance of new content, blending
// phrase/keyword detection with an optional user-supplied hint (spec.md
// §4.2 "Salience scoring").
func ScoreSalience(content string, hint ImportanceHint) float64 {
	score := baseSalience
	lower := strings.ToLower(content)

	if containsAny(lower, explicitRequestPhrases) {
		score += explicitRequestBump
		if score < explicitRequestFloor {
			score = explicitRequestFloor
		}
	}

	if containsAny(lower, architectureKeywords) {
		score += architectureBump
	}

	if containsAny(lower, errorKeywords) {
		score += errorBump
	}

	identifierBonus := float64(len(identifierPattern.FindAllString(content, -1))) * identifierBump
	if identifierBonus > maxIdentifierBonus {
		identifierBonus = maxIdentifierBonus
	}
	score += identifierBonus

	switch hint {
	case ImportanceHigh:
		if score < 0.7 {
			score = 0.7
		}
	case ImportanceLow:
		if score > 0.4 {
			score = 0.4
		}
	}

	return clamp01(score)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// categoryPatterns maps deterministic keyword matches to a suggested
// category; checked in order, first match wins.
var categoryPatterns = []struct {
	category storage.Category
	keywords []string
}{
	{storage.CategoryArchitecture, []string{"architecture", "design decision", "we chose", "approach"}},
	{storage.CategoryError, []string{"error", "bug", "exception", "crash", "failure"}},
	{storage.CategoryPattern, []string{"pattern", "convention", "idiom"}},
	{storage.CategoryPreference, []string{"prefer", "always use", "never use", "style guide"}},
	{storage.CategoryTodo, []string{"todo", "fixme", "need to"}},
	{storage.CategoryLearning, []string{"learned", "turns out", "discovered"}},
}

// SuggestCategory deterministically classifies content, defaulting to
// CategoryNote when nothing matches.
func SuggestCategory(content string) storage.Category {
	lower := strings.ToLower(content)
	for _, p := range categoryPatterns {
		if containsAny(lower, p.keywords) {
			return p.category
		}
	}
	return storage.CategoryNote
}

// DeletionThreshold returns the decayed_score floor below which a memory in
// category c is eligible for deletion during consolidation (spec.md §4.2).
func DeletionThreshold(c storage.Category) float64 {
	switch c {
	case storage.CategoryArchitecture:
		return 0.15
	case storage.CategoryPattern, storage.CategoryPreference:
		return 0.20
	case storage.CategoryError, storage.CategoryLearning, storage.CategoryContext,
		storage.CategoryRelationship, storage.CategoryCustom:
		return 0.22
	default: // note, todo
		return 0.25
	}
}

// IsPromotionEligible reports whether a short-term memory qualifies for
// promotion to long-term: salience at or above threshold (normally
// decay.PromotionThreshold, overridable from configuration) and accessed at
// least once (spec.md §4.2; retention-window alternative resolved per the
// open-question decision recorded alongside consolidation).
func IsPromotionEligible(salience float64, accessCount int, threshold float64) bool {
	return salience >= threshold && accessCount > 0
}
