package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/layout"
	"github.com/kenoir/weco-concept-explorer/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, config.DefaultCatalogueBaseURL, cfg.Catalogue.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Catalogue.Timeout)
	assert.Equal(t, 2, cfg.Graph.MaxDepth)
	assert.Equal(t, 0, cfg.Graph.MaxConcurrentLookups)
	assert.Equal(t, int64(16<<20), cfg.Cache.MaxMemory)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 33*time.Millisecond, cfg.SessionFrameInterval)
	assert.Empty(t, cfg.ConceptCacheTable)
	assert.True(t, cfg.EnableMetrics)
	assert.False(t, cfg.EnableTracing)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("GRAPH_MAX_DEPTH", "3")
	t.Setenv("GRAPH_MAX_CONCURRENT_LOOKUPS", "8")
	t.Setenv("CATALOGUE_TIMEOUT", "2s")
	t.Setenv("CATALOGUE_RATE_LIMIT", "5.5")
	t.Setenv("ENABLE_TRACING", "yes")
	t.Setenv("CONCEPT_CACHE_TABLE", "concepts")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.Graph.MaxDepth)
	assert.Equal(t, 8, cfg.Graph.MaxConcurrentLookups)
	assert.Equal(t, 2*time.Second, cfg.Catalogue.Timeout)
	assert.Equal(t, 5.5, cfg.Catalogue.RateLimit)
	assert.True(t, cfg.EnableTracing)
	assert.Equal(t, "concepts", cfg.ConceptCacheTable)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown environment", "ENVIRONMENT", "moon"},
		{"depth too large", "GRAPH_MAX_DEPTH", "9"},
		{"depth zero", "GRAPH_MAX_DEPTH", "0"},
		{"bad base url", "CATALOGUE_BASE_URL", "not a url"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := config.LoadConfig()
			assert.Error(t, err)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadLayoutFile(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		cfg, err := config.LoadLayoutFile("")
		require.NoError(t, err)
		assert.Equal(t, layout.DefaultParams(), cfg.Layout)
		assert.Equal(t, 500*time.Millisecond, cfg.View.RecenterDuration)
	})

	t.Run("partial file keeps other defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layout.yaml")
		writeFile(t, path, "layout:\n  link_distance: 120\nview:\n  recenter_duration: 250ms\n  max_zoom: 8\n")

		cfg, err := config.LoadLayoutFile(path)
		require.NoError(t, err)
		assert.Equal(t, 120.0, cfg.Layout.LinkDistance)
		assert.Equal(t, -150.0, cfg.Layout.ChargeStrength)
		assert.Equal(t, 250*time.Millisecond, cfg.View.RecenterDuration)
		assert.Equal(t, 0.3, cfg.View.MinZoom)
		assert.Equal(t, 8.0, cfg.View.MaxZoom)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layout.yaml")
		writeFile(t, path, "layout:\n  charge_strength: 40\n")

		_, err := config.LoadLayoutFile(path)
		assert.Error(t, err)
	})

	t.Run("zoom extent must be ordered", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layout.yaml")
		writeFile(t, path, "view:\n  min_zoom: 2\n  max_zoom: 1\n")

		_, err := config.LoadLayoutFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadLayoutFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLayoutWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	writeFile(t, path, "layout:\n  link_distance: 80\n")

	w, err := config.NewLayoutWatcher(path, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	changed := make(chan *config.LayoutConfig, 4)
	w.OnChange(func(c *config.LayoutConfig) { changed <- c })

	writeFile(t, path, "layout:\n  link_distance: 140\n")

	require.Eventually(t, func() bool {
		return w.Current().Layout.LinkDistance == 140
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case c := <-changed:
		assert.Equal(t, 140.0, c.Layout.LinkDistance)
	case <-time.After(5 * time.Second):
		t.Fatal("OnChange was not called")
	}
}

func TestLayoutWatcher_InvalidFileKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	writeFile(t, path, "layout:\n  link_distance: 90\n")

	w, err := config.NewLayoutWatcher(path, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	writeFile(t, path, "layout: [not, a, map")
	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, 90.0, w.Current().Layout.LinkDistance)
	w.Stop()
}
