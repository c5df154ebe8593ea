package engine

import (
	"testing"

	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

func TestExportMemoriesRoundTripsThroughImport(t *testing.T) {
	src := newTestEngine(t)

	if _, err := src.Remember(&RememberOptions{Title: "decision one", Content: "use postgres for storage"}); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Remember(&RememberOptions{Title: "decision two", Content: "use sqlite for the cache"}); err != nil {
		t.Fatal(err)
	}

	exported, err := src.ExportMemories("proj")
	if err != nil {
		t.Fatalf("ExportMemories failed: %v", err)
	}
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported memories, got %d", len(exported))
	}

	dst := newTestEngine(t)
	result, err := dst.ImportMemories(exported)
	if err != nil {
		t.Fatalf("ImportMemories failed: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("expected 2 imports, got %d", result.Imported)
	}
	if result.Skipped != 0 {
		t.Errorf("expected 0 skipped on first import, got %d", result.Skipped)
	}

	all, err := dst.store.List(&storage.MemoryFilters{IncludeGlobal: true, Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 memories present after import, got %d", len(all))
	}
}

func TestImportMemoriesSkipsDuplicates(t *testing.T) {
	src := newTestEngine(t)

	if _, err := src.Remember(&RememberOptions{Title: "a note", Content: "some durable content"}); err != nil {
		t.Fatal(err)
	}
	exported, err := src.ExportMemories("proj")
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestEngine(t)
	if _, err := dst.ImportMemories(exported); err != nil {
		t.Fatal(err)
	}

	result, err := dst.ImportMemories(exported)
	if err != nil {
		t.Fatalf("ImportMemories failed: %v", err)
	}
	if result.Imported != 0 {
		t.Errorf("expected the second import to insert nothing, got %d", result.Imported)
	}
	if result.Skipped != 1 {
		t.Errorf("expected the duplicate to be skipped, got %d skipped", result.Skipped)
	}
}

func TestExportExcludesNonTransferableForGlobalExport(t *testing.T) {
	src := newTestEngine(t)

	if _, err := src.Remember(&RememberOptions{Title: "private", Content: "not meant to travel"}); err != nil {
		t.Fatal(err)
	}

	exported, err := src.ExportMemories("")
	if err != nil {
		t.Fatalf("ExportMemories failed: %v", err)
	}
	if len(exported) != 0 {
		t.Errorf("expected a global export to exclude the non-transferable memory, got %d entries", len(exported))
	}
}
