package similarity

import "testing"

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Hello, World! This is a Test.")

	want := map[string]bool{"hello": true, "world": true, "this": true, "test": true}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for tok := range tokens {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	tokens := Tokenize("a an it is of to golang")
	if _, ok := tokens["golang"]; !ok {
		t.Error("expected 'golang' to survive tokenization")
	}
	if len(tokens) != 1 {
		t.Errorf("expected only tokens longer than 2 chars to survive, got %v", tokens)
	}
}

func TestJaccardEmptySets(t *testing.T) {
	if got := JaccardSets(map[string]struct{}{}, map[string]struct{}{}); got != 1 {
		t.Errorf("jaccard(empty, empty) = %f, want 1", got)
	}
}

func TestJaccardOneEmptySet(t *testing.T) {
	a := Tokenize("golang concurrency patterns")
	empty := map[string]struct{}{}
	if got := JaccardSets(a, empty); got != 0 {
		t.Errorf("jaccard(X, empty) = %f, want 0", got)
	}
	if got := JaccardSets(empty, a); got != 0 {
		t.Errorf("jaccard(empty, X) = %f, want 0", got)
	}
}

func TestJaccardIdenticalSets(t *testing.T) {
	a := Tokenize("the same content here")
	b := Tokenize("the same content here")
	if got := Jaccard("the same content here", "the same content here"); got != 1 {
		t.Errorf("jaccard(X, X) = %f, want 1", got)
	}
	_ = a
	_ = b
}

func TestJaccardPartialOverlap(t *testing.T) {
	got := Jaccard("golang concurrency patterns", "golang error handling")
	if got <= 0 || got >= 1 {
		t.Errorf("expected a partial overlap score strictly between 0 and 1, got %f", got)
	}
}

func TestJaccardDisjointSets(t *testing.T) {
	got := Jaccard("golang concurrency patterns", "python data science")
	if got != 0 {
		t.Errorf("expected disjoint token sets to score 0, got %f", got)
	}
}
