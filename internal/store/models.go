// Package store provides persistence for the codex context pipeline.
// SQLiteStore is the production implementation; MemStore backs tests and the WASM bridge.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kittclouds/codexkitt/pkg/graph"
	"github.com/kittclouds/codexkitt/pkg/richtext"
)

// EntityType classifies a codex entry.
type EntityType string

const (
	TypeCharacter    EntityType = "character"
	TypeLocation     EntityType = "location"
	TypeItem         EntityType = "item"
	TypeLore         EntityType = "lore"
	TypeOrganization EntityType = "organization"
	TypeSubplot      EntityType = "subplot"
)

// ParseEntityType parses a type name, defaulting to lore.
func ParseEntityType(s string) EntityType {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeCharacter:
		return TypeCharacter
	case TypeLocation:
		return TypeLocation
	case TypeItem:
		return TypeItem
	case TypeOrganization:
		return TypeOrganization
	case TypeSubplot:
		return TypeSubplot
	default:
		return TypeLore
	}
}

// Label is the display form used in rendered context ("Character").
func (t EntityType) Label() string {
	if t == "" {
		return "Lore"
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// ContextMode controls whether an entity may enter AI context.
type ContextMode string

const (
	ModeAlways   ContextMode = "always"
	ModeDetected ContextMode = "detected"
	ModeManual   ContextMode = "manual"
	ModeNever    ContextMode = "never"
)

// ParseContextMode parses a mode name, defaulting to detected.
func ParseContextMode(s string) ContextMode {
	switch ContextMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAlways:
		return ModeAlways
	case ModeManual:
		return ModeManual
	case ModeNever:
		return ModeNever
	default:
		return ModeDetected
	}
}

// UnitKind names the kind of text-bearing record a mention belongs to.
type UnitKind string

const (
	UnitScene   UnitKind = "scene"
	UnitMessage UnitKind = "message"
)

// Mention sources when a unit has more than one scanned field.
const (
	SourceContent = "content"
	SourceSummary = "summary"
	SourceBoth    = "both"
)

// Novel scopes every codex entry.
type Novel struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Detail is an ordered key/value attribute of an entity.
type Detail struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Position int    `json:"position"`
}

// Entity is a codex entry. Aliases and details are owned by the entity.
type Entity struct {
	ID                string      `json:"id"`
	NovelID           string      `json:"novelId"`
	Type              EntityType  `json:"type"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	AIContextMode     ContextMode `json:"aiContextMode"`
	IsArchived        bool        `json:"isArchived"`
	IsTrackingEnabled bool        `json:"isTrackingEnabled"`
	Aliases           []string    `json:"aliases"`
	Details           []Detail    `json:"details"`
	CreatedAt         int64       `json:"createdAt"`
	UpdatedAt         int64       `json:"updatedAt"`
}

// UnmarshalJSON decodes an entity with tracking enabled unless the document
// sets "isTrackingEnabled" explicitly, matching the column default.
func (e *Entity) UnmarshalJSON(data []byte) error {
	type plain Entity
	decoded := plain{IsTrackingEnabled: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*e = Entity(decoded)
	return nil
}

// Visible reports whether the entity may appear in AI context at all.
func (e *Entity) Visible() bool {
	return e != nil && !e.IsArchived && e.AIContextMode != ModeNever
}

// Relation is a directed, typed edge between two entities of a novel.
type Relation struct {
	ID              string `json:"id"`
	NovelID         string `json:"novelId"`
	SourceID        string `json:"sourceId"`
	TargetID        string `json:"targetId"`
	RelType         string `json:"relType"`
	Label           string `json:"label,omitempty"`
	IsBidirectional bool   `json:"isBidirectional"`
	CreatedAt       int64  `json:"createdAt"`
}

// Edge converts the relation to its graph form.
func (r *Relation) Edge() graph.Edge {
	return graph.Edge{
		ID:            r.ID,
		SourceID:      r.SourceID,
		TargetID:      r.TargetID,
		RelType:       r.RelType,
		Label:         r.Label,
		Bidirectional: r.IsBidirectional,
	}
}

// Scene is a manuscript content unit. Content may be a rich-text document.
type Scene struct {
	ID        string `json:"id"`
	NovelID   string `json:"novelId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Summary   string `json:"summary,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// UnitID implements the mentions text source.
func (s *Scene) UnitID() string { return s.ID }

// UnitKind implements the mentions text source.
func (s *Scene) UnitKind() UnitKind { return UnitScene }

// UnitNovelID implements the mentions text source.
func (s *Scene) UnitNovelID() string { return s.NovelID }

// PrimaryText is the linearized scene body.
func (s *Scene) PrimaryText() string { return richtext.ParseContent(s.Content) }

// SecondaryText is the scene summary, when present.
func (s *Scene) SecondaryText() (string, bool) {
	if strings.TrimSpace(s.Summary) == "" {
		return "", false
	}
	return richtext.ParseContent(s.Summary), true
}

// ChatMessage is a chat content unit.
type ChatMessage struct {
	ID        string `json:"id"`
	NovelID   string `json:"novelId"`
	ChatID    string `json:"chatId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// UnitID implements the mentions text source.
func (m *ChatMessage) UnitID() string { return m.ID }

// UnitKind implements the mentions text source.
func (m *ChatMessage) UnitKind() UnitKind { return UnitMessage }

// UnitNovelID implements the mentions text source.
func (m *ChatMessage) UnitNovelID() string { return m.NovelID }

// PrimaryText is the message body.
func (m *ChatMessage) PrimaryText() string { return richtext.ParseContent(m.Content) }

// SecondaryText is absent for chat messages.
func (m *ChatMessage) SecondaryText() (string, bool) { return "", false }

// Mention is the persisted mention record of one entity in one content unit.
// Written only by the mention synchronizer.
type Mention struct {
	ID        string   `json:"id"`
	EntityID  string   `json:"entityId"`
	UnitID    string   `json:"unitId"`
	UnitKind  UnitKind `json:"unitKind"`
	NovelID   string   `json:"novelId"`
	Count     int      `json:"count"`
	Positions []int    `json:"positions"`
	Source    string   `json:"source,omitempty"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// MentionChanges is one unit's batch of mention writes.
type MentionChanges struct {
	UnitID  string
	Inserts []*Mention
	Updates []*Mention
	Deletes []string // entity IDs
}

// Empty reports whether there is nothing to write.
func (c *MentionChanges) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0
}

// UnitMentionCount is one row of an entity's mention breakdown.
type UnitMentionCount struct {
	UnitID   string   `json:"unitId"`
	UnitKind UnitKind `json:"unitKind"`
	Count    int      `json:"count"`
	Source   string   `json:"source,omitempty"`
}

// MentionStats aggregates an entity's persisted mentions.
type MentionStats struct {
	EntityID string             `json:"entityId"`
	Total    int                `json:"total"`
	Units    []UnitMentionCount `json:"units"`
}

// Storer defines the interface for data persistence.
// Lookups of missing records return (nil, nil).
type Storer interface {
	// Novels
	UpsertNovel(ctx context.Context, novel *Novel) error
	GetNovel(ctx context.Context, id string) (*Novel, error)

	// Entities (aliases and details are replaced wholesale on upsert)
	UpsertEntity(ctx context.Context, entity *Entity) error
	GetEntity(ctx context.Context, id string) (*Entity, error)
	GetEntities(ctx context.Context, ids []string) ([]*Entity, error)
	ListEntities(ctx context.Context, novelID string, includeArchived bool) ([]*Entity, error)
	DeleteEntity(ctx context.Context, id string) error

	// Relations
	UpsertRelation(ctx context.Context, rel *Relation) error
	DeleteRelation(ctx context.Context, id string) error
	ListRelationsTouching(ctx context.Context, entityIDs []string) ([]*Relation, error)
	ListRelations(ctx context.Context, novelID string) ([]*Relation, error)

	// Content units
	UpsertScene(ctx context.Context, scene *Scene) error
	GetScene(ctx context.Context, id string) (*Scene, error)
	UpsertChatMessage(ctx context.Context, msg *ChatMessage) error
	GetChatMessage(ctx context.Context, id string) (*ChatMessage, error)

	// Mentions
	ListMentionsForUnit(ctx context.Context, unitID string) ([]*Mention, error)
	ApplyMentionChanges(ctx context.Context, changes *MentionChanges) error
	GetMentionStats(ctx context.Context, entityID string) (*MentionStats, error)

	// Lifecycle
	Close() error
}
