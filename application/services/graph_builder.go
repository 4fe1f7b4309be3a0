package services

import (
	"context"
	"errors"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/domain/events"
	"github.com/kenoir/weco-concept-explorer/domain/graph"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxDepth is the number of hops explored from the root.
const DefaultMaxDepth = 2

// ErrNoRoot is returned by Build when it is given no root record.
var ErrNoRoot = errors.New("graph build needs a root concept")

// BuilderOptions tunes graph construction.
type BuilderOptions struct {
	// DefaultMaxDepth is used when Build is called with maxDepth <= 0.
	DefaultMaxDepth int

	// MaxConcurrentLookups bounds the lookups in flight for one expansion
	// step. Zero means unbounded.
	MaxConcurrentLookups int
}

// GraphBuilder expands a root concept into an exploration graph by bounded,
// deduplicating breadth-first traversal.
type GraphBuilder struct {
	resolver  ports.ConceptResolver
	publisher ports.EventPublisher
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
	opts      BuilderOptions
}

// NewGraphBuilder creates a new graph builder. publisher and metrics may be nil.
func NewGraphBuilder(
	resolver ports.ConceptResolver,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
	opts BuilderOptions,
) *GraphBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultMaxDepth <= 0 {
		opts.DefaultMaxDepth = DefaultMaxDepth
	}
	return &GraphBuilder{
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		tracer:    observability.Tracer(),
		logger:    logger,
		opts:      opts,
	}
}

type queueItem struct {
	record *concept.Record
	depth  int
}

// Build expands root into a graph of concepts at most maxDepth hops away.
//
// Unresolvable candidates are dropped without failing the build. Apart from
// ErrNoRoot, the only error returned is the context's, when the build is
// abandoned; the partial graph must then be discarded by the caller.
func (b *GraphBuilder) Build(ctx context.Context, root *concept.Record, maxDepth int) (*graph.Data, error) {
	if root == nil {
		return nil, ErrNoRoot
	}
	if maxDepth <= 0 {
		maxDepth = b.opts.DefaultMaxDepth
	}

	ctx, span := b.tracer.Start(ctx, "GraphBuilder.Build",
		trace.WithAttributes(
			attribute.String("concept.root_id", root.ID),
			attribute.Int("graph.max_depth", maxDepth),
		),
	)
	defer span.End()

	start := time.Now()
	data := graph.New(root.ID, root.Label, root.Type)
	queue := []queueItem{{record: root, depth: 0}}
	dropped := 0

	for head := 0; head < len(queue); head++ {
		if err := ctx.Err(); err != nil {
			return b.abandon(span, data, dropped, start, err)
		}

		item := queue[head]
		if item.depth >= maxDepth {
			continue
		}

		candidates := item.record.Candidates()
		if len(candidates) == 0 {
			continue
		}

		resolved := b.resolveStep(ctx, item.record.ID, candidates)
		if err := ctx.Err(); err != nil {
			return b.abandon(span, data, dropped, start, err)
		}

		nextDepth := item.depth + 1
		for _, c := range resolved {
			if !c.IsUsable() {
				dropped++
				continue
			}
			if data.AddNode(c.ID, c.Label, c.Type, nextDepth) && nextDepth < maxDepth {
				queue = append(queue, queueItem{record: c, depth: nextDepth})
			}
			data.AddEdge(item.record.ID, c.ID)
		}
	}

	duration := time.Since(start)
	stats := data.Stats()
	span.SetAttributes(
		attribute.Int("graph.nodes", stats.NodeCount),
		attribute.Int("graph.edges", stats.EdgeCount),
		attribute.Int("graph.dropped", dropped),
	)
	b.metrics.RecordBuild("success", stats.NodeCount, dropped, duration)

	b.logger.Debug("Graph built",
		zap.String("rootID", root.ID),
		zap.Int("maxDepth", maxDepth),
		zap.Int("nodeCount", stats.NodeCount),
		zap.Int("edgeCount", stats.EdgeCount),
		zap.Int("dropped", dropped),
		zap.Duration("duration", duration),
	)

	b.publish(ctx, events.NewGraphBuilt(root.ID, maxDepth, stats.NodeCount, stats.EdgeCount, dropped, duration, time.Now()))

	return data, nil
}

// resolveStep looks up every candidate of one dequeued concept in parallel
// and waits for all of them. Failed lookups come back as nil.
func (b *GraphBuilder) resolveStep(ctx context.Context, parentID string, candidates []concept.Stub) []*concept.Record {
	ctx, span := b.tracer.Start(ctx, "GraphBuilder.resolveStep",
		trace.WithAttributes(
			attribute.String("concept.parent_id", parentID),
			attribute.Int("step.candidates", len(candidates)),
		),
	)
	defer span.End()

	results := make([]*concept.Record, len(candidates))

	var g errgroup.Group
	if b.opts.MaxConcurrentLookups > 0 {
		g.SetLimit(b.opts.MaxConcurrentLookups)
	}

	for i, stub := range candidates {
		g.Go(func() error {
			record, err := b.resolver.Resolve(ctx, stub.ID)
			if err != nil {
				b.logger.Debug("Dropping unresolvable concept",
					zap.String("parentID", parentID),
					zap.String("conceptID", stub.ID),
					zap.Error(err),
				)
				return nil
			}
			results[i] = record
			return nil
		})
	}

	// Lookups never fail the group; failures are folded into nil results.
	_ = g.Wait()
	return results
}

func (b *GraphBuilder) abandon(span trace.Span, data *graph.Data, dropped int, start time.Time, err error) (*graph.Data, error) {
	span.SetStatus(codes.Error, "build abandoned")
	span.RecordError(err)
	b.metrics.RecordBuild("abandoned", data.NodeCount(), dropped, time.Since(start))
	b.logger.Debug("Graph build abandoned",
		zap.String("rootID", data.RootID()),
		zap.Error(err),
	)
	return data, err
}

func (b *GraphBuilder) publish(ctx context.Context, event events.DomainEvent) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}
