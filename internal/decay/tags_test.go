package decay

import "testing"

func TestExtractTagsFromContent(t *testing.T) {
	tags := ExtractTags("we use Golang and Docker with a Postgres database", nil)

	want := map[string]bool{"golang": true, "docker": true, "postgres": true}
	if len(tags) != len(want) {
		t.Fatalf("expected %d tags, got %v", len(want), tags)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestExtractTagsMergesCallerTags(t *testing.T) {
	tags := ExtractTags("plain content about golang", []string{"Custom", "golang"})

	seen := make(map[string]int)
	for _, tag := range tags {
		seen[tag]++
	}
	if seen["golang"] != 1 {
		t.Errorf("expected golang deduped to one occurrence, got %d", seen["golang"])
	}
	if seen["custom"] != 1 {
		t.Errorf("expected caller tag lowercased and kept, got tags %v", tags)
	}
}

func TestExtractTagsEmptyContent(t *testing.T) {
	tags := ExtractTags("", nil)
	if len(tags) != 0 {
		t.Errorf("expected no tags from empty content, got %v", tags)
	}
}

func TestExtractTagsIgnoresBlankCallerTag(t *testing.T) {
	tags := ExtractTags("no keywords here", []string{"  ", ""})
	if len(tags) != 0 {
		t.Errorf("expected blank caller tags to be dropped, got %v", tags)
	}
}
