package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/michaelv2/claude-cortex-core/internal/store"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
	"github.com/michaelv2/claude-cortex-core/pkg/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Project = "proj"
	cfg.Limits.MaxShortTerm = 250
	cfg.Limits.MaxLongTerm = 5000

	e, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpenCreatesUsableEngine(t *testing.T) {
	e := newTestEngine(t)
	if e.GetProject() != "proj" {
		t.Errorf("expected configured project to be carried over, got %q", e.GetProject())
	}
}

func TestRememberAndRecall(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.Remember(&RememberOptions{Content: "golang concurrency patterns with channels"})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty memory id")
	}

	results, err := e.Recall(&RecallOptions{Query: "golang concurrency"})
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	found := false
	for _, r := range results {
		if r.Memory.ID == id {
			found = true
		}
	}
	if !found {
		t.Error("expected the remembered memory to be recallable")
	}
}

func TestRememberDefaultsToCurrentProject(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.Remember(&RememberOptions{Content: "project-scoped note"})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	m, err := e.store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Project != "proj" {
		t.Errorf("expected memory scoped to the current project, got %q", m.Project)
	}
}

func TestGetContextBucketsByCategory(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Remember(&RememberOptions{Content: "decided to use postgres", Category: storage.CategoryArchitecture}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Remember(&RememberOptions{Content: "use the repository pattern here", Category: storage.CategoryPattern}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Remember(&RememberOptions{Content: "need to write more tests", Category: storage.CategoryTodo}); err != nil {
		t.Fatal(err)
	}

	ctx, err := e.GetContext("", "proj")
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if len(ctx.KeyDecisions) != 1 {
		t.Errorf("expected 1 key decision, got %d", len(ctx.KeyDecisions))
	}
	if len(ctx.Patterns) != 1 {
		t.Errorf("expected 1 pattern, got %d", len(ctx.Patterns))
	}
	if len(ctx.Pending) != 1 {
		t.Errorf("expected 1 pending todo, got %d", len(ctx.Pending))
	}
}

func TestForgetThroughEngine(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.Remember(&RememberOptions{Content: "delete me"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.Forget(&store.ForgetOptions{IDs: []string{id}})
	if err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", result.Deleted)
	}
}

func TestAccessMemoryReinforces(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.Remember(&RememberOptions{Content: "access me"})
	if err != nil {
		t.Fatal(err)
	}

	m, err := e.AccessMemory(id)
	if err != nil {
		t.Fatalf("AccessMemory failed: %v", err)
	}
	if m.AccessCount == 0 {
		t.Error("expected access_count to be bumped")
	}
}

func TestConsolidateThroughEngine(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Remember(&RememberOptions{Content: "something to consolidate"}); err != nil {
		t.Fatal(err)
	}

	result, err := e.Consolidate(context.Background(), false)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil consolidation result")
	}
}

func TestMemoryStatsCounts(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Remember(&RememberOptions{Content: "first", Category: storage.CategoryTodo}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Remember(&RememberOptions{Content: "second", Category: storage.CategoryTodo}); err != nil {
		t.Fatal(err)
	}

	stats, err := e.MemoryStats()
	if err != nil {
		t.Fatalf("MemoryStats failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("expected 2 total memories, got %d", stats.Total)
	}
	if stats.ByCategory[storage.CategoryTodo] != 2 {
		t.Errorf("expected 2 todo-category memories, got %d", stats.ByCategory[storage.CategoryTodo])
	}
}

func TestLinkMemoriesAndGetRelated(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Remember(&RememberOptions{Content: "memory a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Remember(&RememberOptions{Content: "memory b"})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.LinkMemories(a, b, storage.RelReferences, 0.7); err != nil {
		t.Fatalf("LinkMemories failed: %v", err)
	}

	related, err := e.GetRelated(a)
	if err != nil {
		t.Fatalf("GetRelated failed: %v", err)
	}
	if len(related) == 0 {
		t.Error("expected at least one related memory")
	}
}

func TestSetProjectOverridesDefault(t *testing.T) {
	e := newTestEngine(t)

	e.SetProject("other")
	if e.GetProject() != "other" {
		t.Errorf("expected GetProject to reflect the override, got %q", e.GetProject())
	}
}

func TestSessionLifecycleThroughEngine(t *testing.T) {
	e := newTestEngine(t)

	s, err := e.StartSession("proj")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected a session id")
	}

	ended, err := e.EndSession(s.ID, "wrapped up")
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if ended.Summary != "wrapped up" {
		t.Errorf("expected the summary to be recorded, got %q", ended.Summary)
	}
}

func TestEndSessionNotFound(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.EndSession("missing", "x"); err == nil {
		t.Error("expected ending a missing session to fail")
	}
}
