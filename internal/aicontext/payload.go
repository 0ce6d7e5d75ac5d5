// Package aicontext assembles the codex context sent along with an AI request.
//
// Build expands the detected entities through the relation graph, drops what
// may not be shown, renders each entity as a text block and trims the result
// to the model's token budget.
package aicontext

import (
	"github.com/kittclouds/codexkitt/internal/store"
)

// Relation directions as seen from the entity being rendered.
const (
	DirOutgoing      = "outgoing"
	DirIncoming      = "incoming"
	DirBidirectional = "bidirectional"
)

// RelationLine is one rendered relation of an item.
type RelationLine struct {
	RelationID string `json:"relationId"`
	RelType    string `json:"relType"`
	Label      string `json:"label,omitempty"`
	Direction  string `json:"direction"`
	OtherID    string `json:"otherId"`
	OtherName  string `json:"otherName"`
}

// Item is one entity in a context payload.
type Item struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Type                store.EntityType `json:"type"`
	Aliases             []string         `json:"aliases"`
	Description         string           `json:"description,omitempty"`
	Details             []store.Detail   `json:"details"`
	Relations           []RelationLine   `json:"relations"`
	IsDirectlyDetected  bool             `json:"isDirectlyDetected"`
	IncludedViaRelation bool             `json:"includedViaRelation"`
	IsAlwaysIncluded    bool             `json:"isAlwaysIncluded"`
	Depth               int              `json:"depth"`
	Tokens              int              `json:"tokens"`
	Text                string           `json:"-"`
}

// Protected reports whether budget trimming may never drop the item.
func (it *Item) Protected() bool {
	return it.IsDirectlyDetected || it.IsAlwaysIncluded
}

// Payload is the assembled, budgeted context.
type Payload struct {
	Items           []*Item        `json:"items"`
	Text            string         `json:"text"`
	TotalTokens     int            `json:"totalTokens"`
	TokenLimit      int            `json:"tokenLimit"`
	Breakdown       map[string]int `json:"breakdown"`
	OverLimit       bool           `json:"overLimit"`
	UsagePercentage float64        `json:"usagePercentage"`
	Dropped         []string       `json:"dropped"`
}

// Item returns the included item with id, or nil.
func (p *Payload) Item(id string) *Item {
	for _, it := range p.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// IDs lists included entity IDs in payload order.
func (p *Payload) IDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ID
	}
	return ids
}
