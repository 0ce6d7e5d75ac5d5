package mentions

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/codexkitt/internal/store"
	"github.com/kittclouds/codexkitt/pkg/mention"
)

const novelID = "novel-1"

func seedNovel(t *testing.T, st store.Storer, entities ...*store.Entity) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertNovel(ctx, &store.Novel{ID: novelID, Title: "Wonderland"}))
	for _, e := range entities {
		require.NoError(t, st.UpsertEntity(ctx, e))
	}
}

func character(id, name string, created int64, aliases ...string) *store.Entity {
	return &store.Entity{
		ID:                id,
		NovelID:           novelID,
		Type:              store.TypeCharacter,
		Name:              name,
		AIContextMode:     store.ModeDetected,
		IsTrackingEnabled: true,
		Aliases:           aliases,
		CreatedAt:         created,
	}
}

func scene(id, content string) *store.Scene {
	return &store.Scene{ID: id, NovelID: novelID, Content: content}
}

func sceneRef(id string) UnitRef {
	return UnitRef{Kind: store.UnitScene, ID: id}
}

func mentionsByEntity(t *testing.T, st store.Storer, unitID string) map[string]*store.Mention {
	t.Helper()
	list, err := st.ListMentionsForUnit(context.Background(), unitID)
	require.NoError(t, err)
	out := make(map[string]*store.Mention, len(list))
	for _, m := range list {
		out[m.EntityID] = m
	}
	return out
}

// =============================================================================
// Pipeline
// =============================================================================

func TestScanScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	castle := character("castle", "Castle", 2)
	castle.Type = store.TypeLocation
	seedNovel(t, st, character("alice", "Alice", 1), castle)
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice walked to the Castle.")))

	svc := NewService(st)
	defer svc.Close()

	changes, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Equal(t, Changes{Inserted: 2}, changes)

	got := mentionsByEntity(t, st, "s1")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got["alice"].Count)
	assert.Equal(t, []int{0}, got["alice"].Positions)
	assert.Equal(t, 1, got["castle"].Count)
	assert.Equal(t, []int{20}, got["castle"].Positions)
	assert.Equal(t, store.UnitScene, got["castle"].UnitKind)
	assert.Equal(t, store.SourceContent, got["castle"].Source)
}

func TestScanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedNovel(t, st, character("anna", "Anna", 1), character("annabelle", "Annabelle", 2))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Anna greets Annabelle.")))

	svc := NewService(st)
	defer svc.Close()

	_, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	before := mentionsByEntity(t, st, "s1")

	changes, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Equal(t, Changes{Unchanged: 2}, changes)
	assert.Equal(t, before, mentionsByEntity(t, st, "s1"))
	assert.Equal(t, 1, before["anna"].Count)
	assert.Equal(t, 1, before["annabelle"].Count)
}

func TestScanUpdatesAndClears(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedNovel(t, st, character("alice", "Alice", 1), character("bob", "Bob", 2))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice and Bob.")))

	svc := NewService(st)
	defer svc.Close()

	_, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)

	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice, Alice.")))
	changes, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Equal(t, Changes{Updated: 1, Deleted: 1}, changes)
	got := mentionsByEntity(t, st, "s1")
	require.Len(t, got, 1)
	assert.Equal(t, []int{0, 7}, got["alice"].Positions)

	require.NoError(t, st.UpsertScene(ctx, scene("s1", "   ")))
	changes, err = svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Equal(t, Changes{Deleted: 1}, changes)
	assert.Empty(t, mentionsByEntity(t, st, "s1"))
}

func TestScanExcludesUntrackedAndArchived(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	untracked := character("u", "Umbra", 1)
	untracked.IsTrackingEnabled = false
	archived := character("a", "Ash", 2)
	archived.IsArchived = true
	seedNovel(t, st, untracked, archived, character("e", "Elena Blackwood", 3, "The Shadow Mage"))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Umbra and Ash watched. The Shadow Mage appeared.")))

	svc := NewService(st)
	defer svc.Close()

	_, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)

	got := mentionsByEntity(t, st, "s1")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got["e"].Count)
}

func TestScanMergesSummary(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedNovel(t, st, character("alice", "Alice", 1), character("bob", "Bob", 2))
	sc := scene("s1", `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Alice waits."}]}]}`)
	sc.Summary = "Alice meets Bob."
	require.NoError(t, st.UpsertScene(ctx, sc))

	svc := NewService(st)
	defer svc.Close()

	_, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)

	got := mentionsByEntity(t, st, "s1")
	require.Len(t, got, 2)
	// "Alice waits." is 12 runes; the summary starts at 13.
	assert.Equal(t, 2, got["alice"].Count)
	assert.Equal(t, []int{0, 13}, got["alice"].Positions)
	assert.Equal(t, store.SourceBoth, got["alice"].Source)
	assert.Equal(t, []int{25}, got["bob"].Positions)
	assert.Equal(t, store.SourceSummary, got["bob"].Source)
}

func TestScanImportedBundleWithoutTrackingFlag(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	b, err := store.DecodeBundle(strings.NewReader(`{
	  "novel": {"id": "novel-1"},
	  "entities": [{"id": "alice", "type": "character", "name": "Alice"}],
	  "scenes": [{"id": "s1", "content": "Alice walked."}]
	}`))
	require.NoError(t, err)
	_, err = store.Import(ctx, st, b)
	require.NoError(t, err)

	svc := NewService(st)
	defer svc.Close()

	changes, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Equal(t, Changes{Inserted: 1}, changes)
	assert.Equal(t, []int{0}, mentionsByEntity(t, st, "s1")["alice"].Positions)
}

func TestScanChatMessage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedNovel(t, st, character("bob", "Bob", 1))
	require.NoError(t, st.UpsertChatMessage(ctx, &store.ChatMessage{ID: "m1", NovelID: novelID, Content: "Where is Bob?"}))

	svc := NewService(st)
	defer svc.Close()

	_, err := svc.ScanContentUnit(ctx, UnitRef{Kind: store.UnitMessage, ID: "m1"})
	require.NoError(t, err)

	stats, err := svc.MentionStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	require.Len(t, stats.Units, 1)
	assert.Equal(t, store.UnitMessage, stats.Units[0].UnitKind)
}

func TestScanChatMessageThatLooksLikeJSON(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedNovel(t, st, character("alice", "Alice", 1))
	require.NoError(t, st.UpsertChatMessage(ctx, &store.ChatMessage{ID: "m1", NovelID: novelID, Content: `["Alice"]`}))

	svc := NewService(st)
	defer svc.Close()

	changes, err := svc.ScanContentUnit(ctx, UnitRef{Kind: store.UnitMessage, ID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, Changes{Inserted: 1}, changes)
	assert.Equal(t, []int{2}, mentionsByEntity(t, st, "m1")["alice"].Positions)
}

func TestScanReferentialNoop(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	svc := NewService(st)
	defer svc.Close()

	// Unit does not exist.
	changes, err := svc.ScanContentUnit(ctx, sceneRef("ghost"))
	require.NoError(t, err)
	assert.Zero(t, changes.Writes())

	// Unit exists, novel does not.
	require.NoError(t, st.UpsertEntity(ctx, character("alice", "Alice", 1)))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice")))
	changes, err = svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Zero(t, changes.Writes())
	assert.Empty(t, mentionsByEntity(t, st, "s1"))

	_, err = svc.ScanContentUnit(ctx, UnitRef{Kind: "poem", ID: "p1"})
	assert.Error(t, err)
}

func TestScanAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	seedNovel(t, st, character("alice", "Alice", 1))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice, then Alice again.")))

	svc := NewService(st)
	defer svc.Close()

	_, err = svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	changes, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.NoError(t, err)
	assert.Equal(t, Changes{Unchanged: 1}, changes)

	got := mentionsByEntity(t, st, "s1")
	assert.Equal(t, []int{0, 12}, got["alice"].Positions)
}

// failingStore fails every mention write.
type failingStore struct {
	*store.MemStore
	writes atomic.Int32
}

func (f *failingStore) ApplyMentionChanges(context.Context, *store.MentionChanges) error {
	f.writes.Add(1)
	return errors.New("disk full")
}

func TestScanReturnsStoreErrors(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemStore: store.NewMemStore()}
	seedNovel(t, st, character("alice", "Alice", 1))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice")))

	svc := NewService(st, WithDebounce(5*time.Millisecond))
	defer svc.Close()

	_, err := svc.ScanContentUnit(ctx, sceneRef("s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// The save hook swallows the same failure.
	svc.HandleSave(sceneRef("s1"))
	assert.Eventually(t, func() bool { return st.writes.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHandleSaveDebounces(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedNovel(t, st, character("alice", "Alice", 1))
	require.NoError(t, st.UpsertScene(ctx, scene("s1", "Alice")))

	svc := NewService(st, WithDebounce(20*time.Millisecond))
	defer svc.Close()

	for i := 0; i < 5; i++ {
		svc.HandleSave(sceneRef("s1"))
	}
	assert.Equal(t, 1, svc.debouncer.Pending())

	assert.Eventually(t, func() bool {
		return len(mentionsByEntity(t, st, "s1")) == 1
	}, time.Second, 5*time.Millisecond)
}

// =============================================================================
// Merge and Diff
// =============================================================================

func TestMerge(t *testing.T) {
	primary := mention.Result{"a": {Count: 1, Positions: []int{0}}}
	secondary := mention.Result{
		"a": {Count: 1, Positions: []int{2}},
		"b": {Count: 2, Positions: []int{0, 5}},
	}

	got := Merge("héllo", primary, secondary)
	assert.Equal(t, Occurrence{Count: 2, Positions: []int{0, 8}, Source: store.SourceBoth}, got["a"])
	assert.Equal(t, Occurrence{Count: 2, Positions: []int{6, 11}, Source: store.SourceSummary}, got["b"])

	onlyPrimary := Merge("x", primary, nil)
	assert.Equal(t, store.SourceContent, onlyPrimary["a"].Source)
	assert.Empty(t, Merge("", nil, nil))
}

func TestDiff(t *testing.T) {
	existing := []*store.Mention{
		{ID: "m1", EntityID: "same", Count: 1, Positions: []int{0}, Source: store.SourceContent, CreatedAt: 1},
		{ID: "m2", EntityID: "moved", Count: 1, Positions: []int{3}, Source: store.SourceContent, CreatedAt: 1},
		{ID: "m3", EntityID: "gone", Count: 4, Positions: []int{1, 2, 3, 4}},
	}
	found := map[string]Occurrence{
		"same":  {Count: 1, Positions: []int{0}, Source: store.SourceContent},
		"moved": {Count: 1, Positions: []int{9}, Source: store.SourceContent},
		"new":   {Count: 1, Positions: []int{5}, Source: store.SourceContent},
	}

	batch, stats := Diff(sceneRef("s1"), novelID, existing, found, 42)
	assert.Equal(t, Changes{Inserted: 1, Updated: 1, Deleted: 1, Unchanged: 1}, stats)
	require.Len(t, batch.Inserts, 1)
	assert.Equal(t, "new", batch.Inserts[0].EntityID)
	assert.Equal(t, int64(42), batch.Inserts[0].CreatedAt)
	require.Len(t, batch.Updates, 1)
	assert.Equal(t, "m2", batch.Updates[0].ID)
	assert.Equal(t, int64(1), batch.Updates[0].CreatedAt)
	assert.Equal(t, []string{"gone"}, batch.Deletes)

	// Source change alone is an update.
	_, stats = Diff(sceneRef("s1"), novelID, existing[:1], map[string]Occurrence{
		"same": {Count: 1, Positions: []int{0}, Source: store.SourceBoth},
	}, 43)
	assert.Equal(t, Changes{Updated: 1}, stats)

	// Empty input clears the unit.
	batch, stats = Diff(sceneRef("s1"), novelID, existing, nil, 44)
	assert.Equal(t, 3, stats.Deleted)
	assert.Equal(t, []string{"gone", "moved", "same"}, batch.Deletes)
}
