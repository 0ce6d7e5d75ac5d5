package mentions

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/kittclouds/codexkitt/internal/store"
)

// Changes counts what a Sync call did.
type Changes struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Writes reports the number of rows written.
func (c Changes) Writes() int {
	return c.Inserted + c.Updated + c.Deleted
}

// Diff computes the writes that turn existing into found for one unit.
// An empty found map deletes every existing record. Output is ordered by
// entity ID so repeated runs produce the same batch.
func Diff(unit UnitRef, novelID string, existing []*store.Mention, found map[string]Occurrence, now int64) (*store.MentionChanges, Changes) {
	batch := &store.MentionChanges{UnitID: unit.ID}
	var stats Changes

	byEntity := make(map[string]*store.Mention, len(existing))
	for _, m := range existing {
		byEntity[m.EntityID] = m
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		occ := found[id]
		old, ok := byEntity[id]
		if !ok {
			batch.Inserts = append(batch.Inserts, &store.Mention{
				EntityID:  id,
				UnitID:    unit.ID,
				UnitKind:  unit.Kind,
				NovelID:   novelID,
				Count:     occ.Count,
				Positions: occ.Positions,
				Source:    occ.Source,
				CreatedAt: now,
				UpdatedAt: now,
			})
			stats.Inserted++
			continue
		}

		if old.Count == occ.Count && slices.Equal(old.Positions, occ.Positions) && old.Source == occ.Source {
			stats.Unchanged++
			continue
		}
		batch.Updates = append(batch.Updates, &store.Mention{
			ID:        old.ID,
			EntityID:  id,
			UnitID:    unit.ID,
			UnitKind:  unit.Kind,
			NovelID:   novelID,
			Count:     occ.Count,
			Positions: occ.Positions,
			Source:    occ.Source,
			CreatedAt: old.CreatedAt,
			UpdatedAt: now,
		})
		stats.Updated++
	}

	var stale []string
	for id := range byEntity {
		if _, ok := found[id]; !ok {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	batch.Deletes = stale
	stats.Deleted = len(stale)

	return batch, stats
}

// Synchronizer applies scan results to the mention table.
// Safe for concurrent use on different units; callers serialize per unit.
type Synchronizer struct {
	store store.Storer
	now   func() time.Time
}

// NewSynchronizer creates a Synchronizer writing through st.
func NewSynchronizer(st store.Storer) *Synchronizer {
	return &Synchronizer{store: st, now: time.Now}
}

// Sync makes the unit's persisted mentions equal found.
func (s *Synchronizer) Sync(ctx context.Context, unit UnitRef, novelID string, found map[string]Occurrence) (Changes, error) {
	existing, err := s.store.ListMentionsForUnit(ctx, unit.ID)
	if err != nil {
		return Changes{}, fmt.Errorf("mentions: load existing for %s: %w", unit, err)
	}

	batch, stats := Diff(unit, novelID, existing, found, s.now().UnixMilli())
	if batch.Empty() {
		return stats, nil
	}

	if err := ctx.Err(); err != nil {
		return Changes{}, context.Cause(ctx)
	}
	if err := s.store.ApplyMentionChanges(ctx, batch); err != nil {
		return Changes{}, fmt.Errorf("mentions: apply changes for %s: %w", unit, err)
	}
	return stats, nil
}
