package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Bundle is a whole novel in one JSON document, used for imports.
type Bundle struct {
	Novel     Novel          `json:"novel"`
	Entities  []*Entity      `json:"entities"`
	Relations []*Relation    `json:"relations"`
	Scenes    []*Scene       `json:"scenes"`
	Messages  []*ChatMessage `json:"messages"`
}

// DecodeBundle reads a bundle from r.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("store: decode bundle: %w", err)
	}
	if b.Novel.ID == "" {
		return nil, fmt.Errorf("store: bundle has no novel id")
	}
	return &b, nil
}

// ImportCounts reports how many records an import wrote.
type ImportCounts struct {
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
	Scenes    int `json:"scenes"`
	Messages  int `json:"messages"`
}

// Import upserts every record of b into st. Records without a novel ID
// inherit the bundle's.
func Import(ctx context.Context, st Storer, b *Bundle) (ImportCounts, error) {
	var n ImportCounts
	novelID := b.Novel.ID

	if err := st.UpsertNovel(ctx, &b.Novel); err != nil {
		return n, fmt.Errorf("store: import novel: %w", err)
	}
	for _, e := range b.Entities {
		if e.NovelID == "" {
			e.NovelID = novelID
		}
		if err := st.UpsertEntity(ctx, e); err != nil {
			return n, fmt.Errorf("store: import entity %q: %w", e.Name, err)
		}
		n.Entities++
	}
	for _, r := range b.Relations {
		if r.NovelID == "" {
			r.NovelID = novelID
		}
		if err := st.UpsertRelation(ctx, r); err != nil {
			return n, fmt.Errorf("store: import relation %s: %w", r.ID, err)
		}
		n.Relations++
	}
	for _, s := range b.Scenes {
		if s.NovelID == "" {
			s.NovelID = novelID
		}
		if err := st.UpsertScene(ctx, s); err != nil {
			return n, fmt.Errorf("store: import scene %s: %w", s.ID, err)
		}
		n.Scenes++
	}
	for _, m := range b.Messages {
		if m.NovelID == "" {
			m.NovelID = novelID
		}
		if err := st.UpsertChatMessage(ctx, m); err != nil {
			return n, fmt.Errorf("store: import message %s: %w", m.ID, err)
		}
		n.Messages++
	}
	return n, nil
}
