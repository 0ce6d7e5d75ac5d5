// Package graph holds the codex relation graph and the cascade traversal over it.
// The graph of a single novel is small, so it is kept as plain adjacency maps.
package graph

import (
	"context"
	"sort"
)

// Edge is a directed, typed relation between two entities.
// Parallel edges between the same pair are allowed when their IDs differ.
type Edge struct {
	ID            string `json:"id"`
	SourceID      string `json:"sourceId"`
	TargetID      string `json:"targetId"`
	RelType       string `json:"relType"`
	Label         string `json:"label,omitempty"`
	Bidirectional bool   `json:"bidirectional"`
}

// Other returns the endpoint opposite to id, or "" when id is not an endpoint.
func (e Edge) Other(id string) string {
	switch id {
	case e.SourceID:
		return e.TargetID
	case e.TargetID:
		return e.SourceID
	default:
		return ""
	}
}

// Touches reports whether id is one of the endpoints.
func (e Edge) Touches(id string) bool {
	return e.SourceID == id || e.TargetID == id
}

// RelationGraph is an in-memory directed multigraph.
type RelationGraph struct {
	// Edge storage: ID -> Edge
	Edges map[string]*Edge `json:"edges"`

	// Adjacency: entity ID -> set of edge IDs
	Outbound map[string]map[string]struct{} `json:"-"`
	Inbound  map[string]map[string]struct{} `json:"-"`
}

// NewGraph creates an empty graph
func NewGraph() *RelationGraph {
	return &RelationGraph{
		Edges:    make(map[string]*Edge),
		Outbound: make(map[string]map[string]struct{}),
		Inbound:  make(map[string]map[string]struct{}),
	}
}

// FromEdges builds a graph from a flat edge list.
func FromEdges(edges []Edge) *RelationGraph {
	g := NewGraph()
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

// AddEdge inserts or replaces an edge by ID.
func (g *RelationGraph) AddEdge(e Edge) {
	if old, ok := g.Edges[e.ID]; ok {
		g.unlink(old)
	}
	stored := e
	g.Edges[e.ID] = &stored

	if g.Outbound[e.SourceID] == nil {
		g.Outbound[e.SourceID] = make(map[string]struct{})
	}
	g.Outbound[e.SourceID][e.ID] = struct{}{}

	if g.Inbound[e.TargetID] == nil {
		g.Inbound[e.TargetID] = make(map[string]struct{})
	}
	g.Inbound[e.TargetID][e.ID] = struct{}{}
}

// RemoveEdge deletes an edge by ID. Unknown IDs are ignored.
func (g *RelationGraph) RemoveEdge(id string) {
	if e, ok := g.Edges[id]; ok {
		g.unlink(e)
		delete(g.Edges, id)
	}
}

// RemoveNode deletes every edge touching id.
func (g *RelationGraph) RemoveNode(id string) int {
	removed := 0
	for _, e := range g.touching(id) {
		g.RemoveEdge(e.ID)
		removed++
	}
	return removed
}

func (g *RelationGraph) unlink(e *Edge) {
	if out := g.Outbound[e.SourceID]; out != nil {
		delete(out, e.ID)
		if len(out) == 0 {
			delete(g.Outbound, e.SourceID)
		}
	}
	if in := g.Inbound[e.TargetID]; in != nil {
		delete(in, e.ID)
		if len(in) == 0 {
			delete(g.Inbound, e.TargetID)
		}
	}
}

// OutgoingEdges returns edges whose source is id, sorted by edge ID.
func (g *RelationGraph) OutgoingEdges(id string) []Edge {
	return g.collect(g.Outbound[id])
}

// IncomingEdges returns edges whose target is id, sorted by edge ID.
func (g *RelationGraph) IncomingEdges(id string) []Edge {
	return g.collect(g.Inbound[id])
}

func (g *RelationGraph) touching(id string) []Edge {
	ids := make(map[string]struct{}, len(g.Outbound[id])+len(g.Inbound[id]))
	for eid := range g.Outbound[id] {
		ids[eid] = struct{}{}
	}
	for eid := range g.Inbound[id] {
		ids[eid] = struct{}{}
	}
	return g.collect(ids)
}

func (g *RelationGraph) collect(ids map[string]struct{}) []Edge {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Edge, 0, len(ids))
	for eid := range ids {
		if e := g.Edges[eid]; e != nil {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EdgesTouching returns every edge with at least one endpoint in ids.
// Implements EdgeSource.
func (g *RelationGraph) EdgesTouching(_ context.Context, ids []string) ([]Edge, error) {
	set := make(map[string]struct{})
	for _, id := range ids {
		for eid := range g.Outbound[id] {
			set[eid] = struct{}{}
		}
		for eid := range g.Inbound[id] {
			set[eid] = struct{}{}
		}
	}
	return g.collect(set), nil
}

// Neighbors returns the entities connected to id in either direction.
func (g *RelationGraph) Neighbors(id string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, e := range g.touching(id) {
		other := e.Other(id)
		if other == "" || other == id || seen[other] {
			continue
		}
		seen[other] = true
		result = append(result, other)
	}
	sort.Strings(result)
	return result
}

// EdgeCount returns the number of edges
func (g *RelationGraph) EdgeCount() int {
	return len(g.Edges)
}

// NodeCount returns the number of entities with at least one edge.
func (g *RelationGraph) NodeCount() int {
	nodes := make(map[string]struct{})
	for _, e := range g.Edges {
		nodes[e.SourceID] = struct{}{}
		nodes[e.TargetID] = struct{}{}
	}
	return len(nodes)
}

// AllEdges returns all edges sorted by ID.
func (g *RelationGraph) AllEdges() []Edge {
	set := make(map[string]struct{}, len(g.Edges))
	for id := range g.Edges {
		set[id] = struct{}{}
	}
	return g.collect(set)
}

// Clear removes all edges
func (g *RelationGraph) Clear() {
	g.Edges = make(map[string]*Edge)
	g.Outbound = make(map[string]map[string]struct{})
	g.Inbound = make(map[string]map[string]struct{})
}
