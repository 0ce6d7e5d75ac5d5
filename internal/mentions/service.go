package mentions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kittclouds/codexkitt/internal/store"
	"github.com/kittclouds/codexkitt/pkg/alias"
	"github.com/kittclouds/codexkitt/pkg/mention"
)

const tracerName = "github.com/kittclouds/codexkitt/internal/mentions"

// DefaultDebounce is the quiet period used by HandleSave when none is configured.
const DefaultDebounce = 2 * time.Second

// Service runs the scan pipeline for content units.
type Service struct {
	store     store.Storer
	sync      *Synchronizer
	leases    *Leases
	debouncer *Debouncer
	logger    *zap.Logger
	tracer    trace.Tracer
	timeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce sets the quiet period for HandleSave.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) {
		s.debouncer = NewDebouncer(d, s.runDebounced)
	}
}

// WithScanTimeout bounds background scans started by HandleSave.
func WithScanTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock overrides the time source for mention timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.sync.now = now }
}

// NewService wires the pipeline over st.
func NewService(st store.Storer, opts ...Option) *Service {
	s := &Service{
		store:   st,
		sync:    NewSynchronizer(st),
		leases:  NewLeases(),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		timeout: 30 * time.Second,
	}
	s.debouncer = NewDebouncer(DefaultDebounce, s.runDebounced)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close drops pending debounced scans.
func (s *Service) Close() {
	s.debouncer.Stop()
}

// =============================================================================
// Scanning
// =============================================================================

// ScanContentUnit loads a unit and synchronizes its mentions.
// A unit or novel that no longer exists is a no-op. Errors are returned so a
// job layer can retry; re-running is safe.
func (s *Service) ScanContentUnit(ctx context.Context, ref UnitRef) (Changes, error) {
	ctx, span := s.tracer.Start(ctx, "mentions.ScanContentUnit", trace.WithAttributes(
		attribute.String("unit.kind", string(ref.Kind)),
		attribute.String("unit.id", ref.ID),
	))
	defer span.End()

	leaseCtx, release, err := s.leases.Acquire(ctx, ref.ID)
	if err != nil {
		return Changes{}, err
	}
	defer release()

	src, err := s.loadUnit(leaseCtx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Changes{}, err
	}
	if src == nil {
		s.logger.Debug("scan skipped, unit not found", zap.Stringer("unit", ref))
		return Changes{}, nil
	}

	changes, err := s.scan(leaseCtx, src)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return changes, err
}

// ScanSource scans an already loaded unit.
func (s *Service) ScanSource(ctx context.Context, src TextSource) (Changes, error) {
	leaseCtx, release, err := s.leases.Acquire(ctx, src.UnitID())
	if err != nil {
		return Changes{}, err
	}
	defer release()

	return s.scan(leaseCtx, src)
}

func (s *Service) loadUnit(ctx context.Context, ref UnitRef) (TextSource, error) {
	switch ref.Kind {
	case store.UnitScene:
		scene, err := s.store.GetScene(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("mentions: load scene %s: %w", ref.ID, err)
		}
		if scene == nil {
			return nil, nil
		}
		return scene, nil
	case store.UnitMessage:
		msg, err := s.store.GetChatMessage(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("mentions: load message %s: %w", ref.ID, err)
		}
		if msg == nil {
			return nil, nil
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("mentions: unknown unit kind %q", ref.Kind)
	}
}

func (s *Service) scan(ctx context.Context, src TextSource) (Changes, error) {
	ref := UnitRef{Kind: src.UnitKind(), ID: src.UnitID()}
	novelID := src.UnitNovelID()

	novel, err := s.store.GetNovel(ctx, novelID)
	if err != nil {
		return Changes{}, fmt.Errorf("mentions: load novel %s: %w", novelID, err)
	}
	if novel == nil {
		s.logger.Debug("scan skipped, novel not found",
			zap.Stringer("unit", ref), zap.String("novel_id", novelID))
		return Changes{}, nil
	}

	entities, err := s.store.ListEntities(ctx, novelID, false)
	if err != nil {
		return Changes{}, fmt.Errorf("mentions: list entities for %s: %w", novelID, err)
	}
	ix := alias.Build(IndexInput(entities))
	for _, c := range ix.Collisions() {
		s.logger.Debug("alias collision",
			zap.String("term", c.Term), zap.String("kept", c.KeptID), zap.String("dropped", c.DroppedID))
	}

	scanner := mention.NewScanner(ix)
	primaryText := src.PrimaryText()
	primary := scanner.Scan(primaryText)
	var secondary mention.Result
	if text, ok := src.SecondaryText(); ok && strings.TrimSpace(text) != "" {
		secondary = scanner.Scan(text)
	}

	changes, err := s.sync.Sync(ctx, ref, novelID, Merge(primaryText, primary, secondary))
	if err != nil {
		return Changes{}, err
	}

	s.logger.Debug("mentions synchronized",
		zap.Stringer("unit", ref),
		zap.String("novel_id", novelID),
		zap.Int("inserted", changes.Inserted),
		zap.Int("updated", changes.Updated),
		zap.Int("deleted", changes.Deleted),
		zap.Int("unchanged", changes.Unchanged),
	)
	return changes, nil
}

// IndexInput converts stored entities to alias index input.
func IndexInput(entities []*store.Entity) []alias.Entity {
	out := make([]alias.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, alias.Entity{
			ID:                e.ID,
			Type:              string(e.Type),
			Name:              e.Name,
			Aliases:           e.Aliases,
			CreatedAt:         e.CreatedAt,
			IsArchived:        e.IsArchived,
			IsTrackingEnabled: e.IsTrackingEnabled,
		})
	}
	return out
}

// =============================================================================
// Save hook
// =============================================================================

// HandleSave schedules a debounced scan for a saved unit. It never blocks the
// save and never reports scan failures to the caller.
func (s *Service) HandleSave(ref UnitRef) {
	s.debouncer.Trigger(ref)
}

func (s *Service) runDebounced(ref UnitRef) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.ScanContentUnit(ctx, ref); err != nil {
		if errors.Is(err, ErrSuperseded) {
			s.logger.Debug("scan superseded", zap.Stringer("unit", ref))
			return
		}
		s.logger.Warn("background scan failed", zap.Stringer("unit", ref), zap.Error(err))
	}
}

// =============================================================================
// Statistics
// =============================================================================

// MentionStats returns an entity's total mentions and per-unit breakdown.
func (s *Service) MentionStats(ctx context.Context, entityID string) (*store.MentionStats, error) {
	stats, err := s.store.GetMentionStats(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("mentions: stats for %s: %w", entityID, err)
	}
	return stats, nil
}
