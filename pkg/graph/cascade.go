package graph

import (
	"context"
	"fmt"
)

// MaxCascadeDepth bounds how far a cascade may walk from its seeds.
const MaxCascadeDepth = 3

// EdgeSource fetches the edges having at least one endpoint in ids.
type EdgeSource interface {
	EdgesTouching(ctx context.Context, ids []string) ([]Edge, error)
}

// Expansion is the outcome of a cascade.
type Expansion struct {
	// Order lists entities in discovery order, seeds first.
	Order []string
	// Depth is the level each entity was reached at (seeds are 0).
	Depth map[string]int
	// Edges holds every edge fetched during the walk, deduplicated by ID.
	Edges []Edge
}

// Contains reports whether id was reached.
func (x *Expansion) Contains(id string) bool {
	_, ok := x.Depth[id]
	return ok
}

// ClampDepth forces depth into [0, MaxCascadeDepth].
func ClampDepth(depth int) int {
	if depth < 0 {
		return 0
	}
	if depth > MaxCascadeDepth {
		return MaxCascadeDepth
	}
	return depth
}

// Expand walks breadth-first from seeds across edges in both directions.
//
// Each level issues one EdgesTouching call for the whole frontier. Entities
// enter the visited set the moment they are discovered, so cycles terminate
// and no entity's edges are fetched twice.
func Expand(ctx context.Context, src EdgeSource, seeds []string, maxDepth int) (*Expansion, error) {
	maxDepth = ClampDepth(maxDepth)

	x := &Expansion{Depth: make(map[string]int)}
	var frontier []string
	for _, id := range seeds {
		if id == "" {
			continue
		}
		if _, seen := x.Depth[id]; seen {
			continue
		}
		x.Depth[id] = 0
		x.Order = append(x.Order, id)
		frontier = append(frontier, id)
	}

	seenEdges := make(map[string]bool)
	for level := 1; level <= maxDepth && len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("graph: cascade level %d: %w", level, err)
		}

		edges, err := src.EdgesTouching(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("graph: fetch edges at level %d: %w", level, err)
		}

		var next []string
		for _, e := range edges {
			if !seenEdges[e.ID] {
				seenEdges[e.ID] = true
				x.Edges = append(x.Edges, e)
			}
			for _, endpoint := range [2]string{e.SourceID, e.TargetID} {
				if endpoint == "" {
					continue
				}
				if _, visited := x.Depth[endpoint]; visited {
					continue
				}
				x.Depth[endpoint] = level
				x.Order = append(x.Order, endpoint)
				next = append(next, endpoint)
			}
		}
		frontier = next
	}

	return x, nil
}

// RelatedOf returns the direct neighbours of id without any filtering.
// It shares Expand's edge fetch so previews and context assembly agree.
func RelatedOf(ctx context.Context, src EdgeSource, id string) ([]string, error) {
	x, err := Expand(ctx, src, []string{id}, 1)
	if err != nil {
		return nil, err
	}
	related := make([]string, 0, len(x.Order))
	for _, other := range x.Order {
		if other != id {
			related = append(related, other)
		}
	}
	return related, nil
}
