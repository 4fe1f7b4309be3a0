package di

import (
	"github.com/kenoir/weco-concept-explorer/application/explorer"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/application/services"
	"github.com/kenoir/weco-concept-explorer/infrastructure/cache"
	"github.com/kenoir/weco-concept-explorer/infrastructure/catalogue"
	"github.com/kenoir/weco-concept-explorer/infrastructure/config"
	"github.com/kenoir/weco-concept-explorer/interfaces/http/rest"
	"github.com/kenoir/weco-concept-explorer/interfaces/websocket"
	"github.com/kenoir/weco-concept-explorer/pkg/errors"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Tracing      *observability.TracerProvider
	Metrics      *observability.Collector
	ErrorHandler *errors.ErrorHandler
	Catalogue    *catalogue.Client
	Cache        *cache.MemoryCache
	Resolver     ports.ConceptResolver
	Publisher    ports.EventPublisher
	Builder      *services.GraphBuilder
	Settings     explorer.SettingsFunc
	Snapshots    *explorer.Snapshotter
	Sessions     *websocket.Server
	Router       *rest.Router
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideErrorHandler,
	ProvideMetrics,
	ProvideTracing,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideEventPublisher,
	ProvideCatalogueClient,
	ProvideCatalogueProxy,
	ProvideMemoryCache,
	ProvideConceptResolver,
	ProvideGraphBuilder,
	ProvideSettings,
	ProvideSnapshotter,
	ProvideSessionServer,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)
