package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kenoir/weco-concept-explorer/pkg/validation"
)

// DefaultCatalogueBaseURL is the public Wellcome Collection catalogue API.
const DefaultCatalogueBaseURL = "https://api.wellcomecollection.org/catalogue/v2"

// CatalogueConfig holds settings for the upstream catalogue client
type CatalogueConfig struct {
	BaseURL   string        `validate:"required,url"`
	Timeout   time.Duration `validate:"gt=0"`
	RateLimit float64       `validate:"gt=0"`
	Burst     int           `validate:"gte=1"`
}

// GraphConfig bounds graph construction
type GraphConfig struct {
	MaxDepth int `validate:"gte=1,lte=5"`
	// MaxConcurrentLookups caps lookups per BFS step; 0 means unbounded
	MaxConcurrentLookups int `validate:"gte=0"`
}

// CacheConfig sizes the in-memory concept record cache
type CacheConfig struct {
	MaxItems  int           `validate:"gte=1"`
	MaxMemory int64         `validate:"gte=0"`
	TTL       time.Duration `validate:"gt=0"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `validate:"required"`
	Environment   string `validate:"oneof=development staging production test"`

	// Logging
	LogLevel string `validate:"oneof=debug info warn error"`

	Catalogue CatalogueConfig
	Graph     GraphConfig
	Cache     CacheConfig

	// AWS configuration
	AWSRegion         string
	ConceptCacheTable string // empty disables the DynamoDB tier
	EventBusName      string // empty logs events instead of publishing

	// LayoutConfigFile is an optional YAML file with layout tuning
	LayoutConfigFile string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
	OTLPEndpoint  string

	SessionFrameInterval time.Duration `validate:"gt=0"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		Catalogue: CatalogueConfig{
			BaseURL:   getEnv("CATALOGUE_BASE_URL", DefaultCatalogueBaseURL),
			Timeout:   getEnvDuration("CATALOGUE_TIMEOUT", 10*time.Second),
			RateLimit: getEnvFloat("CATALOGUE_RATE_LIMIT", 20),
			Burst:     getEnvInt("CATALOGUE_BURST", 10),
		},
		Graph: GraphConfig{
			MaxDepth:             getEnvInt("GRAPH_MAX_DEPTH", 2),
			MaxConcurrentLookups: getEnvInt("GRAPH_MAX_CONCURRENT_LOOKUPS", 0),
		},
		Cache: CacheConfig{
			MaxItems:  getEnvInt("CACHE_MAX_ITEMS", 1000),
			MaxMemory: getEnvInt64("CACHE_MAX_MEMORY", 16<<20),
			TTL:       getEnvDuration("CACHE_TTL", 10*time.Minute),
		},

		AWSRegion:         getEnv("AWS_REGION", "eu-west-1"),
		ConceptCacheTable: getEnv("CONCEPT_CACHE_TABLE", ""),
		EventBusName:      getEnv("EVENT_BUS_NAME", ""),

		LayoutConfigFile: getEnv("LAYOUT_CONFIG_FILE", ""),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", "localhost:4317"),

		SessionFrameInterval: getEnvDuration("SESSION_FRAME_INTERVAL", 33*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values such as "10s" or "33ms"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
