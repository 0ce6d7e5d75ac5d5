// SQLite-backed Storer.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the SQLite-backed data store.
// Thread-safe for concurrent scans and context builds.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines all tables of the codex.
const schema = `
CREATE TABLE IF NOT EXISTS novels (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    ai_context_mode TEXT NOT NULL DEFAULT 'detected',
    is_archived INTEGER DEFAULT 0,
    is_tracking_enabled INTEGER DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_novel ON entities(novel_id, created_at);

CREATE TABLE IF NOT EXISTS entity_aliases (
    entity_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    alias TEXT NOT NULL,
    PRIMARY KEY (entity_id, position)
);

CREATE TABLE IF NOT EXISTS entity_details (
    entity_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (entity_id, position)
);

-- Note: No foreign keys - referential integrity managed at application level
CREATE TABLE IF NOT EXISTS relations (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    rel_type TEXT NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    bidirectional INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);
CREATE INDEX IF NOT EXISTS idx_relations_novel ON relations(novel_id);

CREATE TABLE IF NOT EXISTS scenes (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    chat_id TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

-- One row per (entity, unit); positions are a JSON array of rune offsets
CREATE TABLE IF NOT EXISTS mentions (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    unit_id TEXT NOT NULL,
    unit_kind TEXT NOT NULL,
    novel_id TEXT NOT NULL,
    count INTEGER NOT NULL,
    positions TEXT NOT NULL DEFAULT '[]',
    source TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (entity_id, unit_id)
);

CREATE INDEX IF NOT EXISTS idx_mentions_unit ON mentions(unit_id);
`

// queryer is the subset of *sql.DB and *sql.Tx the read helpers need.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// Novel CRUD
// =============================================================================

// UpsertNovel inserts or updates a novel.
func (s *SQLiteStore) UpsertNovel(ctx context.Context, novel *Novel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO novels (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at
	`, novel.ID, novel.Title, novel.CreatedAt, novel.UpdatedAt)
	return err
}

// GetNovel retrieves a novel by ID.
func (s *SQLiteStore) GetNovel(ctx context.Context, id string) (*Novel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n Novel
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at FROM novels WHERE id = ?
	`, id).Scan(&n.ID, &n.Title, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// =============================================================================
// Entity CRUD
// =============================================================================

const entityColumns = `id, novel_id, type, name, description, ai_context_mode,
	is_archived, is_tracking_enabled, created_at, updated_at`

// UpsertEntity inserts or updates an entity, replacing its aliases and details.
func (s *SQLiteStore) UpsertEntity(ctx context.Context, entity *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entities (`+entityColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				novel_id = excluded.novel_id,
				type = excluded.type,
				name = excluded.name,
				description = excluded.description,
				ai_context_mode = excluded.ai_context_mode,
				is_archived = excluded.is_archived,
				is_tracking_enabled = excluded.is_tracking_enabled,
				updated_at = excluded.updated_at
		`, entity.ID, entity.NovelID, string(ParseEntityType(string(entity.Type))), entity.Name,
			entity.Description, string(ParseContextMode(string(entity.AIContextMode))),
			boolToInt(entity.IsArchived), boolToInt(entity.IsTrackingEnabled),
			entity.CreatedAt, entity.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert entity: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM entity_aliases WHERE entity_id = ?", entity.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM entity_details WHERE entity_id = ?", entity.ID); err != nil {
			return err
		}
		for i, alias := range entity.Aliases {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entity_aliases (entity_id, position, alias) VALUES (?, ?, ?)",
				entity.ID, i, alias); err != nil {
				return fmt.Errorf("insert alias: %w", err)
			}
		}
		for i, d := range entity.Details {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entity_details (entity_id, position, key, value) VALUES (?, ?, ?, ?)",
				entity.ID, i, d.Key, d.Value); err != nil {
				return fmt.Errorf("insert detail: %w", err)
			}
		}
		return nil
	})
}

// GetEntity retrieves an entity by ID.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities, err := s.queryEntities(ctx, s.db, "SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// GetEntities retrieves the existing entities among ids, in request order.
func (s *SQLiteStore) GetEntities(ctx context.Context, ids []string) ([]*Entity, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entities, err := s.queryEntities(ctx, s.db,
		"SELECT "+entityColumns+" FROM entities WHERE id IN ("+placeholders(len(ids))+")",
		stringArgs(ids)...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	var result []*Entity
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			result = append(result, e)
		}
	}
	return result, nil
}

// ListEntities returns a novel's entities ordered by creation.
func (s *SQLiteStore) ListEntities(ctx context.Context, novelID string, includeArchived bool) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + entityColumns + " FROM entities WHERE novel_id = ?"
	if !includeArchived {
		query += " AND is_archived = 0"
	}
	query += " ORDER BY created_at, id"
	return s.queryEntities(ctx, s.db, query, novelID)
}

// DeleteEntity removes an entity with its aliases, details, relations and mentions.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM entity_aliases WHERE entity_id = ?",
			"DELETE FROM entity_details WHERE entity_id = ?",
			"DELETE FROM mentions WHERE entity_id = ?",
			"DELETE FROM entities WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete entity: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM relations WHERE source_id = ? OR target_id = ?", id, id)
		return err
	})
}

// queryEntities scans entity rows, then loads aliases and details in one
// query each. Rows are closed before the child queries run.
func (s *SQLiteStore) queryEntities(ctx context.Context, q queryer, query string, args ...any) ([]*Entity, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var entities []*Entity
	byID := make(map[string]*Entity)
	for rows.Next() {
		var e Entity
		var entityType, mode string
		var archived, tracking int
		if err := rows.Scan(&e.ID, &e.NovelID, &entityType, &e.Name, &e.Description, &mode,
			&archived, &tracking, &e.CreatedAt, &e.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		e.Type = ParseEntityType(entityType)
		e.AIContextMode = ParseContextMode(mode)
		e.IsArchived = archived != 0
		e.IsTrackingEnabled = tracking != 0
		e.Aliases = []string{}
		e.Details = []Detail{}
		entities = append(entities, &e)
		byID[e.ID] = &e
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(entities) == 0 {
		return entities, nil
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	in := placeholders(len(ids))

	aliasRows, err := q.QueryContext(ctx,
		"SELECT entity_id, alias FROM entity_aliases WHERE entity_id IN ("+in+") ORDER BY entity_id, position",
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	for aliasRows.Next() {
		var entityID, alias string
		if err := aliasRows.Scan(&entityID, &alias); err != nil {
			aliasRows.Close()
			return nil, err
		}
		byID[entityID].Aliases = append(byID[entityID].Aliases, alias)
	}
	if err := aliasRows.Err(); err != nil {
		aliasRows.Close()
		return nil, err
	}
	aliasRows.Close()

	detailRows, err := q.QueryContext(ctx,
		"SELECT entity_id, position, key, value FROM entity_details WHERE entity_id IN ("+in+") ORDER BY entity_id, position",
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load details: %w", err)
	}
	defer detailRows.Close()
	for detailRows.Next() {
		var entityID string
		var d Detail
		if err := detailRows.Scan(&entityID, &d.Position, &d.Key, &d.Value); err != nil {
			return nil, err
		}
		byID[entityID].Details = append(byID[entityID].Details, d)
	}

	return entities, detailRows.Err()
}

// =============================================================================
// Relation CRUD
// =============================================================================

const relationColumns = `id, novel_id, source_id, target_id, rel_type, label, bidirectional, created_at`

// UpsertRelation inserts or updates a relation.
func (s *SQLiteStore) UpsertRelation(ctx context.Context, rel *Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (`+relationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id = excluded.novel_id,
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			rel_type = excluded.rel_type,
			label = excluded.label,
			bidirectional = excluded.bidirectional
	`, rel.ID, rel.NovelID, rel.SourceID, rel.TargetID, rel.RelType, rel.Label,
		boolToInt(rel.IsBidirectional), rel.CreatedAt)
	return err
}

// DeleteRelation removes a relation by ID.
func (s *SQLiteStore) DeleteRelation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM relations WHERE id = ?", id)
	return err
}

// ListRelationsTouching returns every relation with an endpoint in entityIDs.
func (s *SQLiteStore) ListRelationsTouching(ctx context.Context, entityIDs []string) ([]*Relation, error) {
	entityIDs = dedupe(entityIDs)
	if len(entityIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	in := placeholders(len(entityIDs))
	args := append(stringArgs(entityIDs), stringArgs(entityIDs)...)
	return queryRelations(ctx, s.db,
		"SELECT "+relationColumns+" FROM relations WHERE source_id IN ("+in+") OR target_id IN ("+in+") ORDER BY id",
		args...)
}

// ListRelations returns all relations of a novel.
func (s *SQLiteStore) ListRelations(ctx context.Context, novelID string) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryRelations(ctx, s.db,
		"SELECT "+relationColumns+" FROM relations WHERE novel_id = ? ORDER BY id", novelID)
}

func queryRelations(ctx context.Context, q queryer, query string, args ...any) ([]*Relation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []*Relation
	for rows.Next() {
		var r Relation
		var bidirectional int
		if err := rows.Scan(&r.ID, &r.NovelID, &r.SourceID, &r.TargetID, &r.RelType,
			&r.Label, &bidirectional, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.IsBidirectional = bidirectional != 0
		relations = append(relations, &r)
	}
	return relations, rows.Err()
}

// =============================================================================
// Content units
// =============================================================================

// UpsertScene inserts or updates a scene.
func (s *SQLiteStore) UpsertScene(ctx context.Context, scene *Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenes (id, novel_id, title, content, summary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id = excluded.novel_id,
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`, scene.ID, scene.NovelID, scene.Title, scene.Content, scene.Summary, scene.UpdatedAt)
	return err
}

// GetScene retrieves a scene by ID.
func (s *SQLiteStore) GetScene(ctx context.Context, id string) (*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sc Scene
	err := s.db.QueryRowContext(ctx, `
		SELECT id, novel_id, title, content, summary, updated_at FROM scenes WHERE id = ?
	`, id).Scan(&sc.ID, &sc.NovelID, &sc.Title, &sc.Content, &sc.Summary, &sc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// UpsertChatMessage inserts or updates a chat message.
func (s *SQLiteStore) UpsertChatMessage(ctx context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, novel_id, chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id = excluded.novel_id,
			chat_id = excluded.chat_id,
			role = excluded.role,
			content = excluded.content
	`, msg.ID, msg.NovelID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt)
	return err
}

// GetChatMessage retrieves a chat message by ID.
func (s *SQLiteStore) GetChatMessage(ctx context.Context, id string) (*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m ChatMessage
	err := s.db.QueryRowContext(ctx, `
		SELECT id, novel_id, chat_id, role, content, created_at FROM chat_messages WHERE id = ?
	`, id).Scan(&m.ID, &m.NovelID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// =============================================================================
// Mentions
// =============================================================================

// ListMentionsForUnit returns the persisted mentions of one unit.
func (s *SQLiteStore) ListMentionsForUnit(ctx context.Context, unitID string) ([]*Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, unit_id, unit_kind, novel_id, count, positions, source,
			created_at, updated_at
		FROM mentions WHERE unit_id = ? ORDER BY entity_id
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []*Mention
	for rows.Next() {
		var m Mention
		var kind, positionsJSON string
		if err := rows.Scan(&m.ID, &m.EntityID, &m.UnitID, &kind, &m.NovelID, &m.Count,
			&positionsJSON, &m.Source, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.UnitKind = UnitKind(kind)
		if err := json.Unmarshal([]byte(positionsJSON), &m.Positions); err != nil {
			m.Positions = []int{}
		}
		mentions = append(mentions, &m)
	}
	return mentions, rows.Err()
}

// ApplyMentionChanges writes one unit's mention batch in a single transaction.
func (s *SQLiteStore) ApplyMentionChanges(ctx context.Context, changes *MentionChanges) error {
	if changes == nil || changes.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, entityID := range changes.Deletes {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM mentions WHERE unit_id = ? AND entity_id = ?",
				changes.UnitID, entityID); err != nil {
				return fmt.Errorf("delete mention: %w", err)
			}
		}

		for _, m := range changes.Inserts {
			positionsJSON, err := marshalPositions(m.Positions)
			if err != nil {
				return err
			}
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mentions (id, entity_id, unit_id, unit_kind, novel_id, count,
					positions, source, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(entity_id, unit_id) DO UPDATE SET
					count = excluded.count,
					positions = excluded.positions,
					source = excluded.source,
					updated_at = excluded.updated_at
			`, id, m.EntityID, changes.UnitID, string(m.UnitKind), m.NovelID, m.Count,
				positionsJSON, m.Source, m.CreatedAt, m.UpdatedAt); err != nil {
				return fmt.Errorf("insert mention: %w", err)
			}
		}

		for _, m := range changes.Updates {
			positionsJSON, err := marshalPositions(m.Positions)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE mentions SET count = ?, positions = ?, source = ?, updated_at = ?
				WHERE unit_id = ? AND entity_id = ?
			`, m.Count, positionsJSON, m.Source, m.UpdatedAt, changes.UnitID, m.EntityID); err != nil {
				return fmt.Errorf("update mention: %w", err)
			}
		}
		return nil
	})
}

// GetMentionStats aggregates an entity's mentions across units.
func (s *SQLiteStore) GetMentionStats(ctx context.Context, entityID string) (*MentionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_id, unit_kind, count, source
		FROM mentions WHERE entity_id = ?
		ORDER BY count DESC, unit_id
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &MentionStats{EntityID: entityID, Units: []UnitMentionCount{}}
	for rows.Next() {
		var u UnitMentionCount
		var kind string
		if err := rows.Scan(&u.UnitID, &kind, &u.Count, &u.Source); err != nil {
			return nil, err
		}
		u.UnitKind = UnitKind(kind)
		stats.Total += u.Count
		stats.Units = append(stats.Units, u)
	}
	return stats, rows.Err()
}

// =============================================================================
// Helpers
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalPositions(positions []int) (string, error) {
	if positions == nil {
		positions = []int{}
	}
	b, err := json.Marshal(positions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal positions: %w", err)
	}
	return string(b), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
