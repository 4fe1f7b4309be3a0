package explorer

import (
	"context"
	"math"
	"testing"

	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/application/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotter() *Snapshotter {
	cat := testCatalogue()
	return NewSnapshotter(cat, services.NewGraphBuilder(cat, nil, nil, nil, services.BuilderOptions{}), nil, nil)
}

func TestSnapshotter_Graph(t *testing.T) {
	data, err := newSnapshotter().Graph(context.Background(), "A", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, data.NodeCount())
}

func TestSnapshotter_RootFailures(t *testing.T) {
	_, err := newSnapshotter().Graph(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrRootNotFound)
	assert.ErrorIs(t, err, errNotFound)

	_, err = newSnapshotter().Graph(context.Background(), "ghost", 0)
	assert.ErrorIs(t, err, ErrRootNotFound)

	_, err = newSnapshotter().Graph(context.Background(), "broken", 0)
	assert.ErrorIs(t, err, ErrRootUnavailable)
	assert.NotErrorIs(t, err, ErrRootNotFound)
	assert.ErrorIs(t, err, errCatalogueDown)
}

func TestSnapshotter_SceneSettlesAndCentresRoot(t *testing.T) {
	scene, data, err := newSnapshotter().Scene(context.Background(), "A", 2, interaction.Surface{Width: 600, Height: 400})
	require.NoError(t, err)
	assert.Equal(t, 4, data.NodeCount())

	assert.True(t, scene.Settled)
	assert.Equal(t, [4]float64{-300, -200, 600, 400}, scene.ViewBox)
	require.Len(t, scene.Nodes, 4)

	for _, n := range scene.Nodes {
		if n.ID != "A" {
			continue
		}
		// After recentering, the root's drawn position sits at the origin.
		v := scene.View
		assert.InDelta(t, 0, v.X+v.K*n.X, 1e-6)
		assert.InDelta(t, 0, v.Y+v.K*n.Y, 1e-6)
	}
}

func TestSnapshotter_EmptyScene(t *testing.T) {
	scene, _, err := newSnapshotter().Scene(context.Background(), "E", 2, interaction.Surface{})
	require.NoError(t, err)
	assert.True(t, scene.IsEmptyState())
	assert.False(t, math.IsNaN(scene.View.K))
}

func TestSnapshotter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newSnapshotter().Scene(ctx, "A", 2, interaction.Surface{})
	assert.ErrorIs(t, err, context.Canceled)
}
