package di

import (
	"context"
	"fmt"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/explorer"
	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/application/services"
	"github.com/kenoir/weco-concept-explorer/infrastructure/cache"
	"github.com/kenoir/weco-concept-explorer/infrastructure/catalogue"
	"github.com/kenoir/weco-concept-explorer/infrastructure/config"
	"github.com/kenoir/weco-concept-explorer/infrastructure/messaging/eventbridge"
	"github.com/kenoir/weco-concept-explorer/infrastructure/persistence/dynamodb"
	"github.com/kenoir/weco-concept-explorer/interfaces/http/rest"
	"github.com/kenoir/weco-concept-explorer/interfaces/websocket"
	"github.com/kenoir/weco-concept-explorer/pkg/errors"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

const metricsNamespace = "concept_explorer"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zcfg.Level = level

	return zcfg.Build()
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *errors.ErrorHandler {
	return errors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are disabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracing installs the OTLP tracer provider when tracing is enabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, "concept-explorer", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideEventPublisher publishes to EventBridge, or only logs when no bus is configured
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideCatalogueClient creates the rate-limited catalogue client
func ProvideCatalogueClient(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (*catalogue.Client, error) {
	return catalogue.NewClient(catalogue.ClientOptions{
		BaseURL:   cfg.Catalogue.BaseURL,
		Timeout:   cfg.Catalogue.Timeout,
		RateLimit: cfg.Catalogue.RateLimit,
		Burst:     cfg.Catalogue.Burst,
		Metrics:   metrics,
		Logger:    logger,
	})
}

// ProvideCatalogueProxy exposes the client as the proxy port
func ProvideCatalogueProxy(client *catalogue.Client) ports.CatalogueProxy {
	return client
}

// ProvideMemoryCache creates the in-process record cache and starts its sweeper
func ProvideMemoryCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) *cache.MemoryCache {
	c := cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.MaxMemory, logger)
	c.StartCleanup(ctx, time.Minute)
	return c
}

// ProvideConceptResolver layers the caches over the catalogue client. The
// DynamoDB tier is only used when a table is configured.
func ProvideConceptResolver(
	cfg *config.Config,
	client *catalogue.Client,
	memory *cache.MemoryCache,
	ddb *awsdynamodb.Client,
	metrics *observability.Collector,
	logger *zap.Logger,
) ports.ConceptResolver {
	tiers := []catalogue.Tier{{Name: "memory", Cache: memory}}
	if cfg.ConceptCacheTable != "" {
		tiers = append(tiers, catalogue.Tier{
			Name:  "dynamodb",
			Cache: dynamodb.NewConceptCache(ddb, cfg.ConceptCacheTable, logger),
		})
	}
	return catalogue.NewCachingResolver(client, cfg.Cache.TTL, metrics, logger, tiers...)
}

// ProvideGraphBuilder creates the graph builder
func ProvideGraphBuilder(
	cfg *config.Config,
	resolver ports.ConceptResolver,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.GraphBuilder {
	return services.NewGraphBuilder(resolver, publisher, metrics, logger, services.BuilderOptions{
		DefaultMaxDepth:      cfg.Graph.MaxDepth,
		MaxConcurrentLookups: cfg.Graph.MaxConcurrentLookups,
	})
}

// ProvideSettings reads session settings from the layout file, reloading it
// on change when one is configured.
func ProvideSettings(cfg *config.Config, logger *zap.Logger) (explorer.SettingsFunc, func(), error) {
	current := func() *config.LayoutConfig { return config.DefaultLayoutConfig() }
	cleanup := func() {}

	if cfg.LayoutConfigFile != "" {
		watcher, err := config.NewLayoutWatcher(cfg.LayoutConfigFile, logger)
		if err != nil {
			return nil, nil, err
		}
		watcher.OnChange(func(lc *config.LayoutConfig) {
			logger.Info("Layout configuration reloaded",
				zap.Float64("linkDistance", lc.Layout.LinkDistance),
				zap.Float64("chargeStrength", lc.Layout.ChargeStrength))
		})
		watcher.Start()
		current = watcher.Current
		cleanup = watcher.Stop
	}

	settings := func() explorer.Settings {
		lc := current()
		return explorer.Settings{
			Layout:           lc.Layout,
			Zoom:             interaction.ZoomExtent{Min: lc.View.MinZoom, Max: lc.View.MaxZoom},
			RecenterDuration: lc.View.RecenterDuration,
			MaxDepth:         cfg.Graph.MaxDepth,
			FrameInterval:    cfg.SessionFrameInterval,
		}
	}
	return settings, cleanup, nil
}

// ProvideSnapshotter creates the headless graph/scene service
func ProvideSnapshotter(
	resolver ports.ConceptResolver,
	builder *services.GraphBuilder,
	settings explorer.SettingsFunc,
	logger *zap.Logger,
) *explorer.Snapshotter {
	return explorer.NewSnapshotter(resolver, builder, settings, logger)
}

// ProvideSessionServer creates the WebSocket session server
func ProvideSessionServer(
	resolver ports.ConceptResolver,
	builder *services.GraphBuilder,
	publisher ports.EventPublisher,
	settings explorer.SettingsFunc,
	metrics *observability.Collector,
	logger *zap.Logger,
) *websocket.Server {
	return websocket.NewServer(func(sink explorer.Sink) *explorer.Session {
		return explorer.NewSession(explorer.Dependencies{
			Resolver:  resolver,
			Builder:   builder,
			Publisher: publisher,
			Settings:  settings,
			Metrics:   metrics,
			Logger:    logger,
		}, sink)
	}, websocket.DefaultServerConfig(), logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	client *catalogue.Client,
	proxy ports.CatalogueProxy,
	snapshots *explorer.Snapshotter,
	sessions *websocket.Server,
	metrics *observability.Collector,
	logger *zap.Logger,
	errorHandler *errors.ErrorHandler,
) *rest.Router {
	return rest.NewRouter(proxy, snapshots, logger, errorHandler, rest.RouterOptions{
		Sessions:   sessions,
		Metrics:    metrics,
		Ready:      client.Ready,
		EnableCORS: cfg.EnableCORS,
	})
}
