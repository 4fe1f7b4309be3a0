package catalogue

import (
	"context"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Tier is one named level of the record cache, fastest first.
type Tier struct {
	Name  string
	Cache ports.RecordCache
}

// CachingResolver resolves concepts through a chain of cache tiers before
// falling back to the source. Concurrent lookups of the same id share one
// upstream request.
type CachingResolver struct {
	source  ports.ConceptResolver
	tiers   []Tier
	ttl     time.Duration
	group   singleflight.Group
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewCachingResolver wraps source with the given cache tiers.
func NewCachingResolver(source ports.ConceptResolver, ttl time.Duration, metrics *observability.Collector, logger *zap.Logger, tiers ...Tier) *CachingResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingResolver{
		source:  source,
		tiers:   tiers,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve implements ports.ConceptResolver.
func (r *CachingResolver) Resolve(ctx context.Context, id string) (*concept.Record, error) {
	for i, tier := range r.tiers {
		rec, ok, err := tier.Cache.Get(ctx, id)
		if err != nil {
			r.logger.Debug("Cache tier read failed",
				zap.String("tier", tier.Name),
				zap.String("conceptID", id),
				zap.Error(err))
			continue
		}
		r.metrics.RecordCache(tier.Name, ok)
		if ok {
			r.fill(ctx, rec, r.tiers[:i])
			return rec, nil
		}
	}

	// The shared lookup is detached from any one caller's cancellation;
	// each caller stops waiting when its own context ends.
	ch := r.group.DoChan(id, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		rec, err := r.source.Resolve(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		r.fill(fetchCtx, rec, r.tiers)
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*concept.Record), nil
	}
}

func (r *CachingResolver) fill(ctx context.Context, rec *concept.Record, tiers []Tier) {
	for _, tier := range tiers {
		if err := tier.Cache.Set(ctx, rec, r.ttl); err != nil {
			r.logger.Debug("Cache tier write failed",
				zap.String("tier", tier.Name),
				zap.String("conceptID", rec.ID),
				zap.Error(err))
		}
	}
}
