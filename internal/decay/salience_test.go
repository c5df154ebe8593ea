package decay

import (
	"testing"

	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

func TestScoreSalienceBase(t *testing.T) {
	score := ScoreSalience("just a plain sentence with nothing special", "")
	if score < 0.2 || score > 0.3 {
		t.Errorf("expected a baseline score near 0.25, got %f", score)
	}
}

func TestScoreSalienceExplicitRequestFloor(t *testing.T) {
	score := ScoreSalience("please remember this for later", "")
	if score < explicitRequestFloor {
		t.Errorf("expected explicit-request phrases to floor at %f, got %f", explicitRequestFloor, score)
	}
}

func TestScoreSalienceImportanceHintOverrides(t *testing.T) {
	high := ScoreSalience("plain text", ImportanceHigh)
	if high < 0.7 {
		t.Errorf("expected ImportanceHigh to floor the score at 0.7, got %f", high)
	}

	low := ScoreSalience("please remember this, it's important", ImportanceLow)
	if low > 0.4 {
		t.Errorf("expected ImportanceLow to ceiling the score at 0.4, got %f", low)
	}
}

func TestScoreSalienceIdentifierBonusCapped(t *testing.T) {
	content := "`fooBar` `bazQux` `alphaBeta` `gammaDelta` `epsilonZeta` `thetaIota`"
	score := ScoreSalience(content, "")
	if score > baseSalience+maxIdentifierBonus+1e-9 {
		t.Errorf("expected identifier bonus to cap at %f above base, got %f", maxIdentifierBonus, score)
	}
}

func TestScoreSalienceClampedToUnitInterval(t *testing.T) {
	content := "remember this important architecture design decision error bug `ID1` `ID2` `ID3`"
	score := ScoreSalience(content, ImportanceHigh)
	if score < 0 || score > 1 {
		t.Errorf("expected score in [0,1], got %f", score)
	}
}

func TestSuggestCategory(t *testing.T) {
	tests := []struct {
		content  string
		expected storage.Category
	}{
		{"we chose a layered architecture", storage.CategoryArchitecture},
		{"hit an exception when parsing", storage.CategoryError},
		{"this is the idiomatic convention here", storage.CategoryPattern},
		{"always use tabs, never use spaces", storage.CategoryPreference},
		{"todo: add more tests", storage.CategoryTodo},
		{"turns out the cache was stale", storage.CategoryLearning},
		{"just a general note", storage.CategoryNote},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			got := SuggestCategory(tt.content)
			if got != tt.expected {
				t.Errorf("SuggestCategory(%q) = %q, want %q", tt.content, got, tt.expected)
			}
		})
	}
}

func TestDeletionThreshold(t *testing.T) {
	tests := []struct {
		category storage.Category
		expected float64
	}{
		{storage.CategoryArchitecture, 0.15},
		{storage.CategoryPattern, 0.20},
		{storage.CategoryPreference, 0.20},
		{storage.CategoryError, 0.22},
		{storage.CategoryNote, 0.25},
		{storage.CategoryTodo, 0.25},
	}

	for _, tt := range tests {
		if got := DeletionThreshold(tt.category); got != tt.expected {
			t.Errorf("DeletionThreshold(%q) = %f, want %f", tt.category, got, tt.expected)
		}
	}
}

func TestIsPromotionEligible(t *testing.T) {
	if IsPromotionEligible(PromotionThreshold, 0, PromotionThreshold) {
		t.Error("a memory with zero accesses should not be promotion-eligible")
	}
	if !IsPromotionEligible(PromotionThreshold, 1, PromotionThreshold) {
		t.Error("a memory at the threshold with at least one access should be eligible")
	}
	if IsPromotionEligible(PromotionThreshold-0.01, 5, PromotionThreshold) {
		t.Error("a memory below the threshold should not be eligible regardless of access count")
	}
}
