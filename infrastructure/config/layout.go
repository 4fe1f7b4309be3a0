package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/layout"
	"github.com/kenoir/weco-concept-explorer/pkg/validation"

	"gopkg.in/yaml.v3"
)

// ViewConfig tunes the pan/zoom view of an exploration session.
type ViewConfig struct {
	RecenterDuration time.Duration `yaml:"recenter_duration" validate:"gte=0"`
	MinZoom          float64       `yaml:"min_zoom" validate:"gt=0"`
	MaxZoom          float64       `yaml:"max_zoom" validate:"gtefield=MinZoom"`
}

// LayoutConfig is the content of the layout YAML file.
//
//	layout:
//	  link_distance: 80
//	  charge_strength: -150
//	view:
//	  recenter_duration: 500ms
//	  min_zoom: 0.3
//	  max_zoom: 5
type LayoutConfig struct {
	Layout layout.Params `yaml:"layout"`
	View   ViewConfig    `yaml:"view"`
}

// DefaultLayoutConfig is used when no layout file is configured.
func DefaultLayoutConfig() *LayoutConfig {
	return &LayoutConfig{
		Layout: layout.DefaultParams(),
		View: ViewConfig{
			RecenterDuration: 500 * time.Millisecond,
			MinZoom:          0.3,
			MaxZoom:          5,
		},
	}
}

// Validate checks the layout configuration.
func (c *LayoutConfig) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid layout configuration: %w", err)
	}
	return nil
}

// LoadLayoutFile reads a layout file. Keys missing from the file keep their
// defaults. An empty path yields the defaults.
func LoadLayoutFile(path string) (*LayoutConfig, error) {
	cfg := DefaultLayoutConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse layout file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
