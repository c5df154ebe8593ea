package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/michaelv2/claude-cortex-core/internal/engineerr"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.Database) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(db, 250, nil, Tuning{}), db
}

func TestAddAssignsDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.Add(&AddOptions{Content: "a plain memory with no extras", Project: "proj"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if m.ID == "" {
		t.Error("expected an assigned ID")
	}
	if m.Category == "" {
		t.Error("expected a suggested category")
	}
	if m.Salience <= 0 {
		t.Error("expected a scored salience")
	}
}

func TestAddTruncatesOversizedContent(t *testing.T) {
	s, _ := newTestStore(t)

	big := strings.Repeat("x", maxContentBytes+500)
	m, err := s.Add(&AddOptions{Content: big, Project: "proj"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(m.Content) > maxContentBytes {
		t.Errorf("expected content truncated to %d bytes, got %d", maxContentBytes, len(m.Content))
	}
	if !strings.HasSuffix(m.Content, "[truncated]") {
		t.Error("expected a truncation marker")
	}
}

func TestAddStrictModeRejectsOversizedContent(t *testing.T) {
	s, _ := newTestStore(t)

	big := strings.Repeat("x", maxContentBytes+500)
	_, err := s.Add(&AddOptions{Content: big, Project: "proj", StrictMode: true})
	if err == nil {
		t.Fatal("expected strict mode to reject oversized content")
	}
	if code, ok := engineerr.CodeOf(err); !ok || code != engineerr.CodeContentTooLarge {
		t.Errorf("expected CodeContentTooLarge, got %v", err)
	}
}

func TestAddRejectsUnknownCategory(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Add(&AddOptions{Content: "x", Category: "not-a-real-category"})
	if err == nil {
		t.Fatal("expected an unknown category to be rejected")
	}
}

func TestGetNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get("missing")
	if err == nil {
		t.Fatal("expected an error for a missing memory")
	}
	if code, ok := engineerr.CodeOf(err); !ok || code != engineerr.CodeMemoryNotFound {
		t.Errorf("expected CodeMemoryNotFound, got %v", err)
	}
}

func TestListReturnsAddedMemories(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Add(&AddOptions{Content: "memory one", Project: "proj"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(&AddOptions{Content: "memory two", Project: "proj"}); err != nil {
		t.Fatal(err)
	}

	results, err := s.List(&storage.MemoryFilters{Project: "proj"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 memories, got %d", len(results))
	}
}

func TestLinkAndGetRelated(t *testing.T) {
	s, _ := newTestStore(t)

	a, err := s.Add(&AddOptions{Content: "memory a", Project: "proj"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Add(&AddOptions{Content: "memory b", Project: "proj"})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Link(a.ID, b.ID, storage.RelExtends, 0.6); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	related, err := s.GetRelated(a.ID)
	if err != nil {
		t.Fatalf("GetRelated failed: %v", err)
	}
	found := false
	for _, l := range related {
		if l.TargetID == b.ID && l.Relationship == storage.RelExtends {
			found = true
		}
	}
	if !found {
		t.Error("expected to find the created link")
	}
}

func TestLinkRejectsMissingMemory(t *testing.T) {
	s, _ := newTestStore(t)

	a, err := s.Add(&AddOptions{Content: "memory a", Project: "proj"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Link(a.ID, "missing", storage.RelRelated, 0.5); err == nil {
		t.Error("expected linking to a missing memory to fail")
	}
}

func TestAddTriggersSoftThreshold(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	triggered := false
	s := New(db, 1, func() { triggered = true }, Tuning{})

	if _, err := s.Add(&AddOptions{Content: "first", Project: "proj"}); err != nil {
		t.Fatal(err)
	}
	if !triggered {
		t.Error("expected the soft-threshold callback to fire once short-term count reaches the cap")
	}
}

func TestTagSimilarity(t *testing.T) {
	if got := TagSimilarity("golang testing", []string{"golang", "docker"}); got <= 0 {
		t.Errorf("expected a positive similarity for an overlapping tag, got %f", got)
	}
	if got := TagSimilarity("golang testing", nil); got != 0 {
		t.Errorf("expected zero similarity against no tags, got %f", got)
	}
}
