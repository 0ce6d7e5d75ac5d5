// In-memory Storer for tests and the WASM bridge.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kittclouds/codexkitt/pkg/graph"
)

// MemStore is an in-memory implementation of Storer.
type MemStore struct {
	mu        sync.RWMutex
	novels    map[string]*Novel
	entities  map[string]*Entity
	relations map[string]*Relation
	edges     *graph.RelationGraph
	scenes    map[string]*Scene
	messages  map[string]*ChatMessage
	mentions  map[string]map[string]*Mention // unit ID -> entity ID -> record
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		novels:    make(map[string]*Novel),
		entities:  make(map[string]*Entity),
		relations: make(map[string]*Relation),
		edges:     graph.NewGraph(),
		scenes:    make(map[string]*Scene),
		messages:  make(map[string]*ChatMessage),
		mentions:  make(map[string]map[string]*Mention),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// =============================================================================
// Novels
// =============================================================================

func (s *MemStore) UpsertNovel(_ context.Context, novel *Novel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *novel
	s.novels[novel.ID] = &copy
	return nil
}

func (s *MemStore) GetNovel(_ context.Context, id string) (*Novel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.novels[id]; ok {
		copy := *n
		return &copy, nil
	}
	return nil, nil
}

// =============================================================================
// Entities
// =============================================================================

func cloneEntity(e *Entity) *Entity {
	copy := *e
	copy.Aliases = append([]string{}, e.Aliases...)
	copy.Details = append([]Detail{}, e.Details...)
	return &copy
}

func (s *MemStore) UpsertEntity(_ context.Context, entity *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	stored := cloneEntity(entity)
	stored.Type = ParseEntityType(string(stored.Type))
	stored.AIContextMode = ParseContextMode(string(stored.AIContextMode))
	for i := range stored.Details {
		stored.Details[i].Position = i
	}
	s.entities[entity.ID] = stored
	return nil
}

func (s *MemStore) GetEntity(_ context.Context, id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entities[id]; ok {
		return cloneEntity(e), nil
	}
	return nil, nil
}

func (s *MemStore) GetEntities(_ context.Context, ids []string) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var result []*Entity
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := s.entities[id]; ok {
			result = append(result, cloneEntity(e))
		}
	}
	return result, nil
}

func (s *MemStore) ListEntities(_ context.Context, novelID string, includeArchived bool) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Entity
	for _, e := range s.entities {
		if e.NovelID != novelID || (e.IsArchived && !includeArchived) {
			continue
		}
		result = append(result, cloneEntity(e))
	}
	sortEntities(result)
	return result, nil
}

// sortEntities orders by creation time, then ID, matching the SQL ORDER BY.
func sortEntities(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].CreatedAt != entities[j].CreatedAt {
			return entities[i].CreatedAt < entities[j].CreatedAt
		}
		return entities[i].ID < entities[j].ID
	})
}

// DeleteEntity removes the entity with its aliases, details, relations and mentions.
func (s *MemStore) DeleteEntity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entities, id)
	for _, e := range append(s.edges.OutgoingEdges(id), s.edges.IncomingEdges(id)...) {
		delete(s.relations, e.ID)
	}
	s.edges.RemoveNode(id)
	for unitID, byEntity := range s.mentions {
		delete(byEntity, id)
		if len(byEntity) == 0 {
			delete(s.mentions, unitID)
		}
	}
	return nil
}

// =============================================================================
// Relations
// =============================================================================

func (s *MemStore) UpsertRelation(_ context.Context, rel *Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *rel
	if copy.ID == "" {
		copy.ID = uuid.NewString()
		rel.ID = copy.ID
	}
	s.relations[copy.ID] = &copy
	s.edges.AddEdge(copy.Edge())
	return nil
}

func (s *MemStore) DeleteRelation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.relations, id)
	s.edges.RemoveEdge(id)
	return nil
}

func (s *MemStore) ListRelationsTouching(ctx context.Context, entityIDs []string) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges, err := s.edges.EdgesTouching(ctx, entityIDs)
	if err != nil {
		return nil, err
	}
	result := make([]*Relation, 0, len(edges))
	for _, e := range edges {
		if r, ok := s.relations[e.ID]; ok {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (s *MemStore) ListRelations(_ context.Context, novelID string) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Relation
	for _, e := range s.edges.AllEdges() {
		if r, ok := s.relations[e.ID]; ok && r.NovelID == novelID {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

// =============================================================================
// Content units
// =============================================================================

func (s *MemStore) UpsertScene(_ context.Context, scene *Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *scene
	s.scenes[scene.ID] = &copy
	return nil
}

func (s *MemStore) GetScene(_ context.Context, id string) (*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sc, ok := s.scenes[id]; ok {
		copy := *sc
		return &copy, nil
	}
	return nil, nil
}

func (s *MemStore) UpsertChatMessage(_ context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *msg
	s.messages[msg.ID] = &copy
	return nil
}

func (s *MemStore) GetChatMessage(_ context.Context, id string) (*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.messages[id]; ok {
		copy := *m
		return &copy, nil
	}
	return nil, nil
}

// =============================================================================
// Mentions
// =============================================================================

func cloneMention(m *Mention) *Mention {
	copy := *m
	copy.Positions = append([]int{}, m.Positions...)
	return &copy
}

func (s *MemStore) ListMentionsForUnit(_ context.Context, unitID string) ([]*Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Mention
	for _, m := range s.mentions[unitID] {
		result = append(result, cloneMention(m))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EntityID < result[j].EntityID })
	return result, nil
}

func (s *MemStore) ApplyMentionChanges(_ context.Context, changes *MentionChanges) error {
	if changes == nil || changes.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byEntity := s.mentions[changes.UnitID]
	if byEntity == nil {
		byEntity = make(map[string]*Mention)
		s.mentions[changes.UnitID] = byEntity
	}

	for _, entityID := range changes.Deletes {
		delete(byEntity, entityID)
	}
	for _, m := range changes.Inserts {
		stored := cloneMention(m)
		stored.UnitID = changes.UnitID
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		// Upsert semantics keep (entity, unit) unique.
		if existing, ok := byEntity[stored.EntityID]; ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
		}
		byEntity[stored.EntityID] = stored
	}
	for _, m := range changes.Updates {
		existing, ok := byEntity[m.EntityID]
		if !ok {
			continue
		}
		existing.Count = m.Count
		existing.Positions = append([]int{}, m.Positions...)
		existing.Source = m.Source
		existing.UpdatedAt = m.UpdatedAt
	}

	if len(byEntity) == 0 {
		delete(s.mentions, changes.UnitID)
	}
	return nil
}

func (s *MemStore) GetMentionStats(_ context.Context, entityID string) (*MentionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &MentionStats{EntityID: entityID, Units: []UnitMentionCount{}}
	for unitID, byEntity := range s.mentions {
		m, ok := byEntity[entityID]
		if !ok {
			continue
		}
		stats.Total += m.Count
		stats.Units = append(stats.Units, UnitMentionCount{
			UnitID:   unitID,
			UnitKind: m.UnitKind,
			Count:    m.Count,
			Source:   m.Source,
		})
	}
	sortUnitCounts(stats.Units)
	return stats, nil
}

// sortUnitCounts orders the breakdown by count descending, then unit ID.
func sortUnitCounts(units []UnitMentionCount) {
	sort.Slice(units, func(i, j int) bool {
		if units[i].Count != units[j].Count {
			return units[i].Count > units[j].Count
		}
		return units[i].UnitID < units[j].UnitID
	})
}

// Compile-time interface check
var _ Storer = (*MemStore)(nil)
