package explorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/domain/graph"

	"go.uber.org/zap"
)

// maxSnapshotFrames bounds the headless animation loop.
const maxSnapshotFrames = 20000

var (
	// ErrRootNotFound means the catalogue has no usable record for the root.
	ErrRootNotFound = errors.New("root concept not found")

	// ErrRootUnavailable means the root could not be fetched because the
	// catalogue failed or is unreachable.
	ErrRootUnavailable = errors.New("root concept unavailable")
)

// resolveRoot fetches the root record, classifying failures as
// ErrRootNotFound or ErrRootUnavailable. A cancelled ctx is returned as is.
func resolveRoot(ctx context.Context, resolver ports.ConceptResolver, conceptID string) (*concept.Record, error) {
	root, err := resolver.Resolve(ctx, conceptID)
	switch {
	case err == nil && root == nil:
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, conceptID)
	case err == nil:
		return root, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, ports.ErrConceptNotFound):
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, conceptID, err)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnavailable, conceptID, err)
	}
}

// Snapshotter builds graphs and settled scenes without a client attached.
// It serves the graph endpoints and the CLI.
type Snapshotter struct {
	resolver ports.ConceptResolver
	builder  Builder
	settings SettingsFunc
	logger   *zap.Logger
}

// NewSnapshotter creates a Snapshotter. settings may be nil.
func NewSnapshotter(resolver ports.ConceptResolver, builder Builder, settings SettingsFunc, logger *zap.Logger) *Snapshotter {
	if settings == nil {
		settings = DefaultSettings
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{resolver: resolver, builder: builder, settings: settings, logger: logger}
}

// Graph fetches the root and builds its exploration graph. depth <= 0 uses
// the configured depth.
func (s *Snapshotter) Graph(ctx context.Context, conceptID string, depth int) (*graph.Data, error) {
	if depth <= 0 {
		depth = s.settings().MaxDepth
	}
	root, err := resolveRoot(ctx, s.resolver, conceptID)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, root, depth)
}

// Scene builds the graph, runs the layout to rest and completes the
// recenter on the root, returning the final frame.
func (s *Snapshotter) Scene(ctx context.Context, conceptID string, depth int, surface interaction.Surface) (interaction.Scene, *graph.Data, error) {
	data, err := s.Graph(ctx, conceptID, depth)
	if err != nil {
		return interaction.Scene{}, nil, err
	}

	settings := s.settings()
	step := settings.FrameInterval
	if step <= 0 {
		step = DefaultFrameInterval
	}

	// The animation runs on a virtual clock advanced one frame per tick.
	clock := time.Unix(0, 0)
	ctrl := interaction.NewController(interaction.Options{
		Layout:           settings.Layout,
		Zoom:             settings.Zoom,
		RecenterDuration: settings.RecenterDuration,
		Now:              func() time.Time { return clock },
		Logger:           s.logger,
	})
	defer ctrl.Close()

	ctrl.Load(data, data.RootID(), surface)
	frames := 0
	for ctrl.Animating() && frames < maxSnapshotFrames {
		if frames%100 == 0 {
			if err := ctx.Err(); err != nil {
				return interaction.Scene{}, nil, err
			}
		}
		ctrl.Tick()
		clock = clock.Add(step)
		frames++
	}
	if frames == maxSnapshotFrames {
		s.logger.Warn("Layout did not come to rest",
			zap.String("rootID", data.RootID()),
			zap.Int("frames", frames))
	}
	return ctrl.Scene(), data, nil
}
