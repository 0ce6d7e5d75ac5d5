package store

import (
	"context"
	"path/filepath"
	"testing"
)

// =============================================================================
// SQLite Persistence Tests
// =============================================================================

func TestSQLiteStorePersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "codex.db")

	s, err := NewSQLiteStoreWithDSN(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.UpsertEntity(ctx, newEntity("e1", "Alice", 1, "Al")); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if err := s.ApplyMentionChanges(ctx, &MentionChanges{
		UnitID:  "s1",
		Inserts: []*Mention{{EntityID: "e1", UnitKind: UnitScene, NovelID: "novel-1", Count: 1, Positions: []int{4}}},
	}); err != nil {
		t.Fatalf("ApplyMentionChanges failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen: schema creation is idempotent and data survives.
	s, err = NewSQLiteStoreWithDSN(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.GetEntity(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	if got == nil || got.Name != "Alice" || len(got.Aliases) != 1 {
		t.Fatalf("unexpected entity after reopen: %+v", got)
	}

	mentions, err := s.ListMentionsForUnit(ctx, "s1")
	if err != nil {
		t.Fatalf("ListMentionsForUnit failed: %v", err)
	}
	if len(mentions) != 1 || mentions[0].Positions[0] != 4 {
		t.Fatalf("unexpected mentions after reopen: %+v", mentions)
	}
}

func TestSQLiteStoreRollsBackFailedBatch(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	err = s.ApplyMentionChanges(cancelled, &MentionChanges{
		UnitID:  "s1",
		Inserts: []*Mention{{EntityID: "e1", UnitKind: UnitScene, NovelID: "novel-1", Count: 1}},
	})
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}

	mentions, err := s.ListMentionsForUnit(ctx, "s1")
	if err != nil {
		t.Fatalf("ListMentionsForUnit failed: %v", err)
	}
	if len(mentions) != 0 {
		t.Fatalf("cancelled batch left %d rows", len(mentions))
	}
}
