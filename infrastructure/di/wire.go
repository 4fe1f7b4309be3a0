//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/kenoir/weco-concept-explorer/infrastructure/config"

	"github.com/google/wire"
)

// InitializeContainer creates a fully wired container. The returned cleanup
// stops the layout watcher and flushes traces.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
