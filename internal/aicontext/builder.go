package aicontext

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kittclouds/codexkitt/internal/store"
	"github.com/kittclouds/codexkitt/pkg/graph"
	"github.com/kittclouds/codexkitt/pkg/tokens"
)

const tracerName = "github.com/kittclouds/codexkitt/internal/aicontext"

// Config holds the defaults a Builder applies when a call does not override them.
type Config struct {
	Depth          int
	ModelLimit     int
	ContextReserve float64
	Timeout        time.Duration
}

// DefaultConfig matches the environment defaults.
func DefaultConfig() Config {
	return Config{Depth: 1, ModelLimit: 8192, ContextReserve: 0.5, Timeout: 5 * time.Second}
}

// Builder assembles context payloads from a store.
type Builder struct {
	store     store.Storer
	estimator tokens.Estimator
	logger    *zap.Logger
	tracer    trace.Tracer
	cfg       Config
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithEstimator swaps the token estimator.
func WithEstimator(e tokens.Estimator) BuilderOption {
	return func(b *Builder) {
		if e != nil {
			b.estimator = e
		}
	}
}

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder over st.
func NewBuilder(st store.Storer, cfg Config, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:     st,
		estimator: tokens.Default,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// =============================================================================
// Per-call options
// =============================================================================

type request struct {
	depth      int
	modelLimit int
	manual     []string
	alwaysFor  string
}

// Option adjusts one Build call.
type Option func(*request)

// WithDepth sets the cascade depth. It is clamped to [0, 3].
func WithDepth(depth int) Option {
	return func(r *request) { r.depth = depth }
}

// WithModelLimit sets the model's context window in tokens. 0 disables budgeting.
func WithModelLimit(limit int) Option {
	return func(r *request) { r.modelLimit = limit }
}

// WithManual adds entities the user picked by hand. They count as detected.
func WithManual(ids ...string) Option {
	return func(r *request) { r.manual = append(r.manual, ids...) }
}

// WithAlways seeds every always-mode entity of the novel.
func WithAlways(novelID string) Option {
	return func(r *request) { r.alwaysFor = novelID }
}

// =============================================================================
// Build
// =============================================================================

// Build assembles the context for the detected entities.
func (b *Builder) Build(ctx context.Context, detectedIDs []string, opts ...Option) (*Payload, error) {
	req := request{depth: b.cfg.Depth, modelLimit: b.cfg.ModelLimit}
	for _, opt := range opts {
		opt(&req)
	}

	if _, ok := ctx.Deadline(); !ok && b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	ctx, span := b.tracer.Start(ctx, "aicontext.Build", trace.WithAttributes(
		attribute.Int("context.detected", len(detectedIDs)),
		attribute.Int("context.depth", graph.ClampDepth(req.depth)),
		attribute.Int("context.model_limit", req.modelLimit),
	))
	defer span.End()

	p, err := b.build(ctx, detectedIDs, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("context.items", len(p.Items)),
		attribute.Int("context.tokens", p.TotalTokens),
		attribute.Bool("context.over_limit", p.OverLimit),
	)
	b.logger.Debug("context assembled",
		zap.Int("items", len(p.Items)),
		zap.Int("dropped", len(p.Dropped)),
		zap.Int("tokens", p.TotalTokens),
		zap.Int("limit", p.TokenLimit),
		zap.Bool("over_limit", p.OverLimit),
	)
	return p, nil
}

func (b *Builder) build(ctx context.Context, detectedIDs []string, req request) (*Payload, error) {
	direct := make(map[string]bool)
	always := make(map[string]bool)
	var seeds []string

	for _, id := range detectedIDs {
		if id != "" && !direct[id] {
			direct[id] = true
			seeds = append(seeds, id)
		}
	}
	for _, id := range req.manual {
		if id != "" && !direct[id] {
			direct[id] = true
			seeds = append(seeds, id)
		}
	}
	if req.alwaysFor != "" {
		entities, err := b.store.ListEntities(ctx, req.alwaysFor, false)
		if err != nil {
			return nil, fmt.Errorf("aicontext: list always entities: %w", err)
		}
		for _, e := range entities {
			if e.AIContextMode != store.ModeAlways {
				continue
			}
			always[e.ID] = true
			if !direct[e.ID] {
				seeds = append(seeds, e.ID)
			}
		}
	}

	x, err := graph.Expand(ctx, StoreEdges{Store: b.store}, seeds, req.depth)
	if err != nil {
		return nil, fmt.Errorf("aicontext: cascade: %w", err)
	}

	loaded, err := b.store.GetEntities(ctx, x.Order)
	if err != nil {
		return nil, fmt.Errorf("aicontext: load entities: %w", err)
	}
	visible := make(map[string]*store.Entity, len(loaded))
	for _, e := range loaded {
		if e.Visible() {
			visible[e.ID] = e
		}
	}

	var items []*Item
	for _, id := range x.Order {
		e, ok := visible[id]
		if !ok {
			continue
		}
		items = append(items, &Item{
			ID:                  e.ID,
			Name:                e.Name,
			Type:                e.Type,
			Aliases:             e.Aliases,
			Description:         e.Description,
			Details:             e.Details,
			Relations:           []RelationLine{},
			IsDirectlyDetected:  direct[id],
			IncludedViaRelation: !direct[id] && !always[id],
			IsAlwaysIncluded:    always[id],
			Depth:               x.Depth[id],
		})
	}

	if err := b.attachRelations(ctx, items, visible); err != nil {
		return nil, err
	}

	return fit(items, TokenLimit(req.modelLimit, b.cfg.ContextReserve), b.estimator), nil
}

// attachRelations lists every relation of each item whose other end is visible.
// Other ends outside the payload are loaded so their names and modes are known.
func (b *Builder) attachRelations(ctx context.Context, items []*Item, visible map[string]*store.Entity) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	rels, err := b.store.ListRelationsTouching(ctx, ids)
	if err != nil {
		return fmt.Errorf("aicontext: load relations: %w", err)
	}

	others := make(map[string]*store.Entity, len(visible))
	for id, e := range visible {
		others[id] = e
	}
	var missing []string
	for _, r := range rels {
		for _, id := range [2]string{r.SourceID, r.TargetID} {
			if _, ok := others[id]; !ok {
				others[id] = nil
				missing = append(missing, id)
			}
		}
	}
	if len(missing) > 0 {
		extra, err := b.store.GetEntities(ctx, missing)
		if err != nil {
			return fmt.Errorf("aicontext: load relation targets: %w", err)
		}
		for _, e := range extra {
			others[e.ID] = e
		}
	}

	byID := make(map[string]*Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for _, r := range rels {
		if it, ok := byID[r.SourceID]; ok {
			appendRelation(it, r, r.TargetID, DirOutgoing, others)
		}
		if r.TargetID == r.SourceID {
			continue
		}
		if it, ok := byID[r.TargetID]; ok {
			appendRelation(it, r, r.SourceID, DirIncoming, others)
		}
	}
	return nil
}

func appendRelation(it *Item, r *store.Relation, otherID, dir string, others map[string]*store.Entity) {
	other := others[otherID]
	if !other.Visible() {
		return
	}
	if r.IsBidirectional {
		dir = DirBidirectional
	}
	it.Relations = append(it.Relations, RelationLine{
		RelationID: r.ID,
		RelType:    r.RelType,
		Label:      r.Label,
		Direction:  dir,
		OtherID:    other.ID,
		OtherName:  other.Name,
	})
}

// BuildString renders the payload for direct prompt interpolation.
// It returns "" when nothing was included.
func (b *Builder) BuildString(ctx context.Context, detectedIDs []string, opts ...Option) (string, error) {
	p, err := b.Build(ctx, detectedIDs, opts...)
	if err != nil {
		return "", err
	}
	return Wrap(p.Text), nil
}

// BuildForUnit assembles context for the entities persisted as mentioned in
// a content unit. Manual-mode entities are not picked up from mentions; pass
// them with WithManual. Always-mode entities of novelID are included.
func (b *Builder) BuildForUnit(ctx context.Context, unitID, novelID string, opts ...Option) (*Payload, error) {
	mentions, err := b.store.ListMentionsForUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("aicontext: load mentions for %s: %w", unitID, err)
	}

	ids := make([]string, 0, len(mentions))
	for _, m := range mentions {
		ids = append(ids, m.EntityID)
	}
	entities, err := b.store.GetEntities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("aicontext: load mentioned entities: %w", err)
	}

	detected := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.AIContextMode == store.ModeManual {
			continue
		}
		detected = append(detected, e.ID)
	}

	return b.Build(ctx, detected, append([]Option{WithAlways(novelID)}, opts...)...)
}

// RelatedOf lists the direct neighbours of an entity, unfiltered.
func (b *Builder) RelatedOf(ctx context.Context, entityID string) ([]string, error) {
	related, err := graph.RelatedOf(ctx, StoreEdges{Store: b.store}, entityID)
	if err != nil {
		return nil, fmt.Errorf("aicontext: related of %s: %w", entityID, err)
	}
	return related, nil
}

// =============================================================================
// Store adapter
// =============================================================================

// StoreEdges exposes a store's relations as a graph.EdgeSource.
type StoreEdges struct {
	Store store.Storer
}

// EdgesTouching implements graph.EdgeSource.
func (s StoreEdges) EdgesTouching(ctx context.Context, ids []string) ([]graph.Edge, error) {
	rels, err := s.Store.ListRelationsTouching(ctx, ids)
	if err != nil {
		return nil, err
	}
	edges := make([]graph.Edge, len(rels))
	for i, r := range rels {
		edges[i] = r.Edge()
	}
	return edges, nil
}
