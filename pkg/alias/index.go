// Package alias builds the per-novel lookup of searchable terms.
// An Index is a plain value built for one scan job; nothing here is cached globally.
package alias

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ============================================================================
// Input
// ============================================================================

// Entity is the subset of a codex entry the index needs.
type Entity struct {
	ID                string
	Type              string
	Name              string
	Aliases           []string
	CreatedAt         int64
	IsArchived        bool
	IsTrackingEnabled bool
}

// Entry is what a term resolves to.
type Entry struct {
	EntityID   string
	EntityType string
}

// Collision records a term claimed by more than one entity.
// KeptID is the entity that owns the term in the index.
type Collision struct {
	Term      string
	KeptID    string
	DroppedID string
}

// ============================================================================
// Index
// ============================================================================

// Index maps lowercased terms to entities.
type Index struct {
	entries    map[string]Entry
	terms      []string // longest-first
	collisions []Collision
}

// Build registers every name and alias of the scannable entities.
//
// Archived and tracking-disabled entities are skipped. Entities are registered
// oldest first (CreatedAt, then ID) and the first registrant of a term keeps it.
func Build(entities []Entity) *Index {
	ordered := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.IsArchived || !e.IsTrackingEnabled || e.ID == "" {
			continue
		}
		ordered = append(ordered, e)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt != ordered[j].CreatedAt {
			return ordered[i].CreatedAt < ordered[j].CreatedAt
		}
		return ordered[i].ID < ordered[j].ID
	})

	ix := &Index{entries: make(map[string]Entry)}
	for _, e := range ordered {
		surfaces := append([]string{e.Name}, e.Aliases...)
		for _, surface := range surfaces {
			key := Normalize(surface)
			if key == "" {
				continue
			}
			if existing, ok := ix.entries[key]; ok {
				if existing.EntityID != e.ID {
					ix.collisions = append(ix.collisions, Collision{
						Term:      key,
						KeptID:    existing.EntityID,
						DroppedID: e.ID,
					})
				}
				continue
			}
			ix.entries[key] = Entry{EntityID: e.ID, EntityType: e.Type}
			ix.terms = append(ix.terms, key)
		}
	}

	sort.Slice(ix.terms, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(ix.terms[i]), utf8.RuneCountInString(ix.terms[j])
		if li != lj {
			return li > lj
		}
		return ix.terms[i] < ix.terms[j]
	})

	return ix
}

// Lookup resolves a surface form, ignoring case and surrounding whitespace.
func (ix *Index) Lookup(term string) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	e, ok := ix.entries[Normalize(term)]
	return e, ok
}

// Terms returns the registered terms, longest first.
func (ix *Index) Terms() []string {
	if ix == nil {
		return nil
	}
	out := make([]string, len(ix.terms))
	copy(out, ix.terms)
	return out
}

// Len is the number of distinct terms.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.terms)
}

// Collisions lists terms that lost to an earlier registrant.
func (ix *Index) Collisions() []Collision {
	if ix == nil {
		return nil
	}
	return ix.collisions
}

// EntityIDs returns the distinct entities that own at least one term.
func (ix *Index) EntityIDs() []string {
	if ix == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range ix.terms {
		id := ix.entries[t].EntityID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// String Utilities
// ============================================================================

// Normalize trims, collapses inner whitespace and lowercases rune by rune.
// The mention scanner folds scanned text the same way, so a multi-word term
// also matches across line breaks and repeated spaces.
func Normalize(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return Lower(strings.Join(fields, " "))
}

// Lower maps every rune through unicode.ToLower.
func Lower(s string) string {
	return strings.Map(unicode.ToLower, s)
}
