package consolidation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/decay"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

func newTestDB(t *testing.T) *storage.Database {
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
	return db
}

func createMemory(t *testing.T, db *storage.Database, m *storage.Memory) *storage.Memory {
	t.Helper()
	if err := db.CreateMemory(m); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	return m
}

func TestShouldRunWithNoPriorRun(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	if !c.ShouldRun() {
		t.Error("expected ShouldRun to be true with no recorded prior run")
	}
}

func TestShouldRunRespectsMinInterval(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	if err := db.SetMeta(lastRunMetaKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		t.Fatal(err)
	}
	if c.ShouldRun() {
		t.Error("expected ShouldRun to be false immediately after a run")
	}

	if err := db.SetMeta(lastRunMetaKey, time.Now().UTC().Add(-2*time.Hour).Format(time.RFC3339)); err != nil {
		t.Fatal(err)
	}
	if !c.ShouldRun() {
		t.Error("expected ShouldRun to be true after MinInterval has elapsed")
	}
}

func TestRunPromotesEligibleMemories(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	m := createMemory(t, db, &storage.Memory{
		Content: "eligible for promotion", Salience: decay.PromotionThreshold, AccessCount: 3,
	})

	result, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Consolidated != 1 {
		t.Errorf("expected 1 promotion, got %d", result.Consolidated)
	}

	got, err := db.GetMemory(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != storage.TypeLongTerm {
		t.Errorf("expected memory promoted to long_term, got %q", got.Type)
	}
}

func TestRunDeletesBelowDeletionThreshold(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	stale := createMemory(t, db, &storage.Memory{
		Content: "stale note", Category: storage.CategoryNote, Salience: 0.01, DecayedScore: 0.01,
	})
	// back-date so recomputed decay also lands below threshold.
	if _, err := db.DB().Exec(`UPDATE memories SET last_accessed = ? WHERE id = ?`,
		time.Now().UTC().Add(-10000*time.Hour), stale.ID); err != nil {
		t.Fatal(err)
	}

	result, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted == 0 {
		t.Error("expected at least one deletion")
	}

	got, err := db.GetMemory(stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected the stale memory to be deleted")
	}
}

func TestRunDryRunDoesNotMutate(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	m := createMemory(t, db, &storage.Memory{Content: "stale", Salience: 0.01, DecayedScore: 0.01})
	if _, err := db.DB().Exec(`UPDATE memories SET last_accessed = ? WHERE id = ?`,
		time.Now().UTC().Add(-10000*time.Hour), m.ID); err != nil {
		t.Fatal(err)
	}

	result, err := c.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Preview) == 0 {
		t.Error("expected a non-empty preview in dry-run mode")
	}

	got, err := db.GetMemory(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("expected dry-run to leave the memory in place")
	}
}

func TestRunEnforcesShortTermCapacity(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 2, MaxLongTerm: 5000})

	for i := 0; i < 5; i++ {
		createMemory(t, db, &storage.Memory{Content: "filler", Salience: 0.5})
	}

	result, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted < 3 {
		t.Errorf("expected capacity enforcement to evict at least 3 memories, got %d", result.Deleted)
	}

	remaining, err := db.ListMemories(&storage.MemoryFilters{IncludeGlobal: true, Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) > 2 {
		t.Errorf("expected at most 2 memories to survive capacity enforcement, got %d", len(remaining))
	}
}

func TestRunMergesSimilarShortTermMemories(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	createMemory(t, db, &storage.Memory{
		Content: "golang concurrency patterns with channels and goroutines",
		Title:   "concurrency notes", Category: storage.CategoryNote, Salience: 0.5,
	})
	createMemory(t, db, &storage.Memory{
		Content: "golang concurrency patterns with channels and goroutine pools",
		Title:   "concurrency notes v2", Category: storage.CategoryNote, Salience: 0.6,
	})

	result, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Merged != 1 {
		t.Errorf("expected 1 merge cluster, got %d", result.Merged)
	}

	remaining, err := db.ListMemories(&storage.MemoryFilters{IncludeGlobal: true, Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected the pair to merge into a single memory, got %d", len(remaining))
	}
}

func TestRunEvolvesHubSalience(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	hub := createMemory(t, db, &storage.Memory{Content: "hub memory", Salience: 0.4})
	a := createMemory(t, db, &storage.Memory{Content: "neighbor a", Salience: 0.4})
	b := createMemory(t, db, &storage.Memory{Content: "neighbor b", Salience: 0.4})

	if err := db.CreateLink(&storage.MemoryLink{SourceID: hub.ID, TargetID: a.ID, Relationship: storage.RelRelated, Strength: 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateLink(&storage.MemoryLink{SourceID: hub.ID, TargetID: b.ID, Relationship: storage.RelRelated, Strength: 0.5}); err != nil {
		t.Fatal(err)
	}

	result, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.SalienceEvolved == 0 {
		t.Error("expected at least one memory to receive a hub salience bonus")
	}

	got, err := db.GetMemory(hub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Salience <= 0.4 {
		t.Errorf("expected the hub memory's salience to have increased, got %f", got.Salience)
	}
}

func TestRunRespectsCancelledContext(t *testing.T) {
	db := newTestDB(t)
	c := New(db, Limits{MaxShortTerm: 250, MaxLongTerm: 5000})

	createMemory(t, db, &storage.Memory{Content: "x", Salience: 0.5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Run(ctx, false); err == nil {
		t.Error("expected a cancelled context to abort the run")
	}
}
